package signal

import "io"

// Channel bit positions in a packed trace sample.
const (
	ClkBit = 1 << 0
	DioBit = 1 << 1
	StbBit = 1 << 2
)

// StrobePresent reports whether any packed sample drives the strobe line.
// The 3-wire bus idles with STB high, so a genuine 3-wire capture always
// drives it; a 2-wire capture leaves the bit clear throughout.
func StrobePresent(samples []byte) bool {
	for _, b := range samples {
		if b&StbBit != 0 {
			return true
		}
	}
	return false
}

// Trace is an in-memory Source over an already-captured sample stream.
// Each sample is one packed byte: bit 0 = CLK, bit 1 = DIO, bit 2 = STB.
type Trace struct {
	samples    []byte
	sampleRate float64
	hasStb     bool
	pos        int // next sample index to examine
	cur        int // index returned by the last Wait
}

// NewTrace creates a trace source from packed samples. Pass hasStb=false for
// captures of the 2-wire bus; strobe constraints then never match.
func NewTrace(samples []byte, sampleRate float64, hasStb bool) *Trace {
	return &Trace{
		samples:    samples,
		sampleRate: sampleRate,
		hasStb:     hasStb,
		cur:        -1,
	}
}

// Len returns the total number of samples in the trace.
func (t *Trace) Len() int {
	return len(t.samples)
}

// At returns the channel levels at sample index i.
func (t *Trace) At(i int) Sample {
	return t.sampleAt(i)
}

// SampleRate returns the capture sample rate in samples per second.
func (t *Trace) SampleRate() float64 {
	return t.sampleRate
}

// SetSampleRate configures the sample rate for captures that do not declare
// one. Must be called before decoding starts.
func (t *Trace) SetSampleRate(rate float64) {
	t.sampleRate = rate
}

// HasChannel reports whether the capture carries the given line.
func (t *Trace) HasChannel(ch Channel) bool {
	switch ch {
	case Clk, Dio:
		return true
	case Stb:
		return t.hasStb
	}
	return false
}

// SampleIndex returns the absolute index of the most recent matched sample.
func (t *Trace) SampleIndex() int {
	return t.cur
}

func (t *Trace) sampleAt(i int) Sample {
	b := t.samples[i]
	s := Sample{
		Clk: b & 1,
		Dio: (b >> 1) & 1,
	}
	if t.hasStb {
		s.Stb = (b >> 2) & 1
	}
	return s
}

// matches tests a single constraint on a single channel at sample index i.
// Edge constraints need a previous sample, so they never match at index 0.
func (t *Trace) matches(cond Cond, ch Channel, i int) bool {
	if cond == Any {
		return true
	}
	if !t.HasChannel(ch) {
		return false
	}
	cur := t.sampleAt(i).level(ch)
	switch cond {
	case Low:
		return cur == 0
	case High:
		return cur == 1
	case Rising, Falling:
		if i == 0 {
			return false
		}
		prev := t.sampleAt(i - 1).level(ch)
		if cond == Rising {
			return prev == 0 && cur == 1
		}
		return prev == 1 && cur == 0
	}
	return false
}

// Wait advances through the trace until one of the patterns matches,
// returning the matched sample and the index of the first matching pattern.
// Returns io.EOF when the trace is exhausted.
func (t *Trace) Wait(patterns []Pattern) (Sample, int, error) {
	for ; t.pos < len(t.samples); t.pos++ {
		for pi, p := range patterns {
			ok := true
			for ch := Channel(0); ch < numChannels; ch++ {
				if !t.matches(p.cond(ch), ch, t.pos) {
					ok = false
					break
				}
			}
			if ok {
				t.cur = t.pos
				t.pos++
				return t.sampleAt(t.cur), pi, nil
			}
		}
	}
	return Sample{}, -1, io.EOF
}
