package device

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/sigdec/tmc/config"
)

// A Pico-based logic probe running the picoprobe-la firmware: it enumerates
// as a CDC serial port and streams one packed sample byte per capture tick.
const (
	SerialVendorID  = 0x2e8a // Raspberry Pi
	SerialProductID = 0x000a // Pico CDC

	// Probe command codes
	cmdIdent = 0x49 // 'I': respond with ident string
	cmdArm   = 0x41 // 'A': arm the capture, samples follow
	cmdHalt  = 0x48 // 'H': stop streaming

	identResponse = "TMCPROBE"

	readTimeout = 2 * time.Second
)

// SerialProbe wraps a serial port connection to a streaming logic probe
type SerialProbe struct {
	port         serial.Port
	serialNumber string
	log          *logrus.Logger
}

func init() {
	Register(SerialVendorID, SerialProductID, NewSerialProbe)
}

// NewSerialProbe opens the probe's serial port and verifies its ident
// string, so that an arbitrary CDC device with the same VID/PID is not
// mistaken for a probe.
func NewSerialProbe(portDetails *enumerator.PortDetails) (Device, error) {
	mode := &serial.Mode{
		BaudRate: probeBaud(),
	}
	port, err := serial.Open(portDetails.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portDetails.Name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	probe := &SerialProbe{
		port:         port,
		serialNumber: portDetails.SerialNumber,
		log:          logrus.StandardLogger(),
	}

	if err := probe.ident(); err != nil {
		port.Close()
		return nil, err
	}
	return probe, nil
}

// probeBaud returns the configured probe baud rate, falling back to the
// firmware default when no configuration has been loaded.
func probeBaud() int {
	if config.DevBaud > 0 {
		return config.DevBaud
	}
	return 115200
}

// Name identifies the probe for display.
func (p *SerialProbe) Name() string {
	return fmt.Sprintf("serial logic probe (S/N %s)", p.serialNumber)
}

// ident sends the ident command and checks the response.
func (p *SerialProbe) ident() error {
	if _, err := p.port.Write([]byte{cmdIdent}); err != nil {
		return fmt.Errorf("failed to send ident command: %w", err)
	}
	buf := make([]byte, len(identResponse))
	if err := p.readFull(buf); err != nil {
		return fmt.Errorf("failed to read ident response: %w", err)
	}
	if string(buf) != identResponse {
		return fmt.Errorf("unexpected ident response %q", buf)
	}
	return nil
}

// Capture arms the probe and reads n packed sample bytes.
func (p *SerialProbe) Capture(n int) ([]byte, error) {
	p.log.WithFields(logrus.Fields{
		"samples": n,
		"serial":  p.serialNumber,
	}).Debug("arming serial probe")

	if _, err := p.port.Write([]byte{cmdArm}); err != nil {
		return nil, fmt.Errorf("failed to arm probe: %w", err)
	}

	samples := make([]byte, n)
	if err := p.readFull(samples); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	if _, err := p.port.Write([]byte{cmdHalt}); err != nil {
		return nil, fmt.Errorf("failed to halt probe: %w", err)
	}

	p.log.WithField("samples", n).Debug("capture complete")
	return samples, nil
}

// readFull reads until buf is full. The port read timeout bounds each
// individual read; a zero-length read means the probe stopped streaming.
func (p *SerialProbe) readFull(buf []byte) error {
	got := 0
	for got < len(buf) {
		n, err := p.port.Read(buf[got:])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("probe stopped streaming after %d of %d bytes", got, len(buf))
		}
		got += n
	}
	return nil
}

// Close releases the serial port.
func (p *SerialProbe) Close() error {
	return p.port.Close()
}
