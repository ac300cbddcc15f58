package capture

import (
	"fmt"
	"os"

	"github.com/sigdec/tmc/signal"
)

// ReadRaw reads a raw packed capture: one byte per sample, bit 0 CLK,
// bit 1 DIO, bit 2 STB. Raw files carry no sample rate, so sampleRate must
// be supplied by the caller. The strobe channel is inferred from the
// samples themselves.
func ReadRaw(filename string, sampleRate float64) (*signal.Trace, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return signal.NewTrace(data, sampleRate, signal.StrobePresent(data)), nil
}
