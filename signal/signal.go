// Package signal defines the sampled-signal source contract consumed by the
// TMC bus decoder, plus an in-memory implementation for captured traces.
//
// A source hands out channel samples strictly in increasing sample order
// through a blocking Wait call: the decoder describes which level/edge
// combinations it is interested in, and the source advances through the
// sample stream until one of them matches. This is a pull model, the same
// way a flux decoder pulls transitions from a flux iterator.
package signal

// Channel identifies one of the bus lines.
type Channel int

const (
	Clk Channel = iota // serial clock
	Dio                // data input/output
	Stb                // strobe (3-wire bus only)

	numChannels
)

// String returns the conventional line name.
func (c Channel) String() string {
	switch c {
	case Clk:
		return "CLK"
	case Dio:
		return "DIO"
	case Stb:
		return "STB"
	default:
		return "Unknown"
	}
}

// Cond is a per-channel wait constraint. The zero value matches anything,
// so patterns only need to spell out the channels they care about.
type Cond uint8

const (
	Any     Cond = iota // no constraint on this channel
	Low                 // level 0
	High                // level 1
	Rising              // 0 -> 1 transition since the previous sample
	Falling             // 1 -> 0 transition since the previous sample
)

// Pattern is a set of simultaneous per-channel constraints. A pattern
// matches a sample when every non-Any constraint holds. A constraint on a
// channel the source does not carry never matches.
type Pattern struct {
	Clk Cond
	Dio Cond
	Stb Cond
}

func (p Pattern) cond(ch Channel) Cond {
	switch ch {
	case Clk:
		return p.Clk
	case Dio:
		return p.Dio
	case Stb:
		return p.Stb
	}
	return Any
}

// Sample holds the channel levels (0 or 1) at one sample index. Levels of
// absent channels read as 0.
type Sample struct {
	Clk uint8
	Dio uint8
	Stb uint8
}

func (s Sample) level(ch Channel) uint8 {
	switch ch {
	case Clk:
		return s.Clk
	case Dio:
		return s.Dio
	case Stb:
		return s.Stb
	}
	return 0
}

// Source supplies channel samples to a decoder.
//
// Wait blocks until the stream reaches a sample satisfying at least one of
// the given patterns and returns that sample together with the index of the
// first matching pattern (first-listed wins when several match at once).
// When the stream is exhausted Wait returns io.EOF; that is the only
// termination signal.
type Source interface {
	// SampleRate returns the capture sample rate in samples per second,
	// or 0 when unknown.
	SampleRate() float64

	// HasChannel reports whether the capture carries the given line.
	HasChannel(ch Channel) bool

	// Wait advances through the stream until a pattern matches.
	Wait(patterns []Pattern) (Sample, int, error)

	// SampleIndex returns the absolute index of the sample returned by
	// the most recent successful Wait.
	SampleIndex() int
}
