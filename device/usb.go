package device

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial/enumerator"
)

// fx2lafw-compatible USB logic analyzer.
const (
	USBVendorID  = 0x1d50 // OpenMoko
	USBProductID = 0x608c // sigrok fx2lafw

	usbInterface   = 0
	endpointBulkIn = 0x82

	// The fx2lafw streams one byte per sample across 8 channels; the bus
	// lines are expected on channels 0..2, matching the packed layout.
	usbReadChunk = 16384
)

// USBAnalyzer wraps an fx2lafw-style analyzer streaming samples over a
// bulk IN endpoint
type USBAnalyzer struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	done   func()
	bulkIn *gousb.InEndpoint
	log    *logrus.Logger
}

func init() {
	RegisterUSB(NewUSBAnalyzer)
}

// NewUSBAnalyzer opens the first fx2lafw analyzer on the bus. The port
// details are ignored; the analyzer is a pure USB device.
func NewUSBAnalyzer(_ *enumerator.PortDetails) (Device, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == USBVendorID && uint16(desc.Product) == USBProductID
	})
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("analyzer not found (VID=0x%04X PID=0x%04X)", USBVendorID, USBProductID)
	}

	// Use the first matching device
	dev := devs[0]
	for i := 1; i < len(devs); i++ {
		devs[i].Close()
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to get config 1: %w", err)
	}

	intf, err := cfg.Interface(usbInterface, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", usbInterface, err)
	}

	done := func() {
		intf.Close()
		cfg.Close()
	}

	bulkIn, err := intf.InEndpoint(endpointBulkIn)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to open bulk in endpoint: %w", err)
	}

	return &USBAnalyzer{
		ctx:    ctx,
		dev:    dev,
		done:   done,
		bulkIn: bulkIn,
		log:    logrus.StandardLogger(),
	}, nil
}

// Name identifies the analyzer for display.
func (a *USBAnalyzer) Name() string {
	return fmt.Sprintf("fx2lafw analyzer (bus %d, addr %d)", a.dev.Desc.Bus, a.dev.Desc.Address)
}

// Capture reads n sample bytes from the bulk IN endpoint.
func (a *USBAnalyzer) Capture(n int) ([]byte, error) {
	a.log.WithField("samples", n).Debug("starting USB capture")

	samples := make([]byte, 0, n)
	chunk := make([]byte, usbReadChunk)
	for len(samples) < n {
		want := n - len(samples)
		if want > len(chunk) {
			want = len(chunk)
		}
		got, err := a.bulkIn.Read(chunk[:want])
		if err != nil {
			return nil, fmt.Errorf("bulk read failed after %d of %d bytes: %w", len(samples), n, err)
		}
		samples = append(samples, chunk[:got]...)
	}

	a.log.WithField("samples", len(samples)).Debug("capture complete")
	return samples, nil
}

// Close releases the interface, device and USB context.
func (a *USBAnalyzer) Close() error {
	a.done()
	if err := a.dev.Close(); err != nil {
		a.ctx.Close()
		return err
	}
	return a.ctx.Close()
}
