// Package capture reads logic-analyzer capture files and turns them into
// sample traces for decoding. The format is detected from the file
// extension.
package capture

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sigdec/tmc/signal"
)

// Format represents a capture file format.
type Format int

const (
	// FormatUnknown represents an unknown or unrecognized format
	FormatUnknown Format = iota
	FormatCSV            // CSV format - one row of 0/1 channel values per sample (sigrok-cli export)
	FormatVCD            // VCD format - IEEE 1364 value change dump, scalar wires only
	FormatRaw            // RAW format - one packed byte per sample (bit 0 CLK, bit 1 DIO, bit 2 STB)
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "CSV"
	case FormatVCD:
		return "VCD"
	case FormatRaw:
		return "RAW"
	default:
		return "Unknown"
	}
}

// DetectFormat detects the capture format from a filename based on its
// extension.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".vcd":
		return FormatVCD
	case ".raw", ".bin":
		return FormatRaw
	default:
		return FormatUnknown
	}
}

// Read reads a capture file and returns a sample trace. The format is
// automatically detected from the file extension. A positive sampleRate
// overrides whatever rate the file itself declares; pass 0 to use the
// file's own rate (RAW files declare none).
func Read(filename string, sampleRate float64) (*signal.Trace, error) {
	switch DetectFormat(filename) {
	case FormatCSV:
		return ReadCSV(filename, sampleRate, nil)
	case FormatVCD:
		return ReadVCD(filename, sampleRate)
	case FormatRaw:
		return ReadRaw(filename, sampleRate)
	default:
		return nil, fmt.Errorf("unknown or unsupported capture format for file: %s", filename)
	}
}
