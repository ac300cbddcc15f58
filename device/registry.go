// Package device finds and drives capture hardware: logic probes that
// stream packed channel samples over a serial port or a USB bulk endpoint.
package device

import (
	"fmt"
	"strconv"

	"go.bug.st/serial/enumerator"

	"github.com/sigdec/tmc/config"
)

// Device is a capture device producing packed samples (bit 0 CLK,
// bit 1 DIO, bit 2 STB, one byte per sample).
type Device interface {
	// Name identifies the device for display.
	Name() string
	// Capture records n consecutive samples.
	Capture(n int) ([]byte, error)
	// Close releases the device.
	Close() error
}

// Factory is a function that creates a device from serial port details.
// USB-only devices ignore the port details.
type Factory func(portDetails *enumerator.PortDetails) (Device, error)

// Info contains information about a registered device type
type Info struct {
	VendorID  uint16
	ProductID uint16
	Factory   Factory
}

var registered []Info

// Register registers a serial device factory with its VID/PID
func Register(vendorID, productID uint16, factory Factory) {
	registered = append(registered, Info{
		VendorID:  vendorID,
		ProductID: productID,
		Factory:   factory,
	})
}

// RegisterUSB registers a device that doesn't use serial ports
func RegisterUSB(factory Factory) {
	registered = append(registered, Info{
		VendorID:  0, // Special marker for USB-only devices
		ProductID: 0,
		Factory:   factory,
	})
}

// Find returns a capture device. A port configured explicitly is opened
// directly as a serial probe; otherwise serial ports are scanned for a
// registered device, trying serial devices first and USB-only devices
// after.
func Find() (Device, error) {
	if config.DevPort != "" {
		dev, err := NewSerialProbe(&enumerator.PortDetails{Name: config.DevPort})
		if err != nil {
			return nil, fmt.Errorf("failed to open configured port %s: %w", config.DevPort, err)
		}
		return dev, nil
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	for _, info := range registered {
		if info.VendorID == 0 && info.ProductID == 0 {
			continue
		}
		for _, port := range ports {
			vid, err := strconv.ParseUint(port.VID, 16, 16)
			if err != nil {
				continue
			}
			pid, err := strconv.ParseUint(port.PID, 16, 16)
			if err != nil {
				continue
			}
			if uint16(vid) != info.VendorID || uint16(pid) != info.ProductID {
				continue
			}
			dev, err := info.Factory(port)
			if err != nil {
				continue // Try next port
			}
			return dev, nil
		}
	}

	for _, info := range registered {
		if info.VendorID != 0 || info.ProductID != 0 {
			continue
		}
		dev, err := info.Factory(nil)
		if err != nil {
			continue
		}
		return dev, nil
	}

	return nil, fmt.Errorf("no capture device found")
}

// Registered returns the registered device types, for listing.
func Registered() []Info {
	return registered
}
