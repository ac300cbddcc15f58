// Package decoder decodes the bit-serial bus used by the TM1636/TM1637/
// TM1638 family of LED driver chips from a stream of sampled channel values.
//
// The bus comes in two variants, detected at every start condition: the
// 2-wire variant (CLK+DIO, with an in-band ACK bit after every byte) and the
// 3-wire variant (CLK+DIO+STB, no ACK). Bytes are transmitted least
// significant bit first. Despite the superficial resemblance this is not
// I2C: there is no slave address and the bit order is reversed.
package decoder

import (
	"errors"
	"io"
	"strconv"

	"github.com/sigdec/tmc/signal"
)

// Fatal decode preconditions, checked once when decoding starts.
var (
	ErrNoSampleRate   = errors.New("cannot decode without sample rate")
	ErrMissingChannel = errors.New("both CLK and DIO channels required")
)

// BusVariant is the framing discipline of the session in progress,
// determined at each start condition.
type BusVariant int

const (
	BusUnknown BusVariant = iota
	Wire2                 // CLK+DIO, in-band ACK after every byte
	Wire3                 // CLK+DIO+STB, no ACK
)

// String returns the variant name.
func (b BusVariant) String() string {
	switch b {
	case Wire2:
		return "2-wire"
	case Wire3:
		return "3-wire"
	default:
		return "unknown"
	}
}

// Decoder states.
type state int

const (
	findStart state = iota
	findData
	findAck
	findStop // defensive, not reached by the normal transitions
)

// Decoder is the bus decoder state machine. Create one with New, then feed
// it a sample source with Run. A Decoder is not safe for concurrent use;
// all state belongs to the single decoding loop.
type Decoder struct {
	radix Radix

	src        signal.Source
	out        Sink
	sampleRate float64

	state state
	bus   BusVariant

	ssByte   int // start sample of the byte being accumulated
	ssAck    int // start of the pending ACK window (2-wire)
	pduStart int // sample of the last start condition
	pduBits  int // clock pulses since the last start condition

	byteCount int
	bitCount  int
	dataByte  byte
	bits      []Bit // accumulated bits, oldest first
}

// New creates a decoder that formats byte annotations in the given radix.
func New(radix Radix) *Decoder {
	d := &Decoder{radix: radix}
	d.Reset()
	return d
}

// Reset restores the decoder to its initial state. It is idempotent and may
// be called between sessions regardless of prior history.
func (d *Decoder) Reset() {
	d.state = findStart
	d.bus = BusUnknown
	d.ssByte = -1
	d.ssAck = -1
	d.pduStart = -1
	d.pduBits = 0
	d.byteCount = 0
	d.clearData()
}

func (d *Decoder) clearData() {
	d.bitCount = 0
	d.dataByte = 0
	d.bits = d.bits[:0]
}

// Run decodes the sample stream from src, emitting events to out. It
// returns nil when the stream is exhausted; exhaustion is the only
// termination signal. The source must report a sample rate and carry the
// CLK and DIO channels; STB is optional and selects the bus variant.
func (d *Decoder) Run(src signal.Source, out Sink) error {
	if src.SampleRate() <= 0 {
		return ErrNoSampleRate
	}
	if !src.HasChannel(signal.Clk) || !src.HasChannel(signal.Dio) {
		return ErrMissingChannel
	}
	d.src = src
	d.out = out
	d.sampleRate = src.SampleRate()

	for {
		var err error
		switch d.state {
		case findStart:
			err = d.waitStart()
		case findData:
			err = d.waitData()
		case findAck:
			err = d.waitAck()
		case findStop:
			err = d.waitStop()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// waitStart waits for either variant's start condition:
// 3-wire: STB falling (any clock level); 2-wire: DIO falling while CLK high.
func (d *Decoder) waitStart() error {
	_, matched, err := d.src.Wait([]signal.Pattern{
		{Clk: signal.High, Stb: signal.Falling},
		{Clk: signal.Low, Stb: signal.Falling},
		{Clk: signal.High, Dio: signal.Falling},
	})
	if err != nil {
		return err
	}
	switch matched {
	case 0, 1:
		d.bus = Wire3
	case 2:
		d.bus = Wire2
	default:
		return nil // unmatched: retry the same wait
	}
	d.handleStart()
	return nil
}

// waitData waits for a stop condition or the next clock pulse:
// 3-wire stop: STB rising; 2-wire stop: DIO rising while CLK high;
// data bit: CLK rising.
func (d *Decoder) waitData() error {
	sample, matched, err := d.src.Wait([]signal.Pattern{
		{Stb: signal.Rising},
		{Clk: signal.High, Dio: signal.Rising},
		{Clk: signal.Rising},
	})
	if err != nil {
		return err
	}
	switch matched {
	case 0, 1:
		d.handleStop()
	case 2:
		d.handleData(sample)
	}
	return nil
}

// waitAck waits for the falling clock edge carrying the ACK/NACK bit.
func (d *Decoder) waitAck() error {
	sample, _, err := d.src.Wait([]signal.Pattern{
		{Clk: signal.Falling},
	})
	if err != nil {
		return err
	}
	d.handleAck(sample)
	return nil
}

// waitStop waits for a stop condition of either variant.
func (d *Decoder) waitStop() error {
	_, _, err := d.src.Wait([]signal.Pattern{
		{Stb: signal.Rising},
		{Clk: signal.High, Dio: signal.Rising},
	})
	if err != nil {
		return err
	}
	d.handleStop()
	return nil
}

func (d *Decoder) handleStart() {
	now := d.src.SampleIndex()
	d.pduStart = now
	d.pduBits = 0
	d.byteCount = 0
	d.out.Event(Event{Kind: Start, Start: now, End: now})
	d.putAnn(now, now, Start, labels[Start])
	d.clearData()
	d.state = findData
}

// handleData is called at every rising clock edge regardless of its
// purpose; the variant paths sort out data bits from framing pulses.
func (d *Decoder) handleData(sample signal.Sample) {
	now := d.src.SampleIndex()
	d.pduBits++
	if d.bitCount == 0 {
		d.ssByte = now
	}
	switch d.bus {
	case Wire2:
		d.dataWire2(sample, now)
	case Wire3:
		d.dataWire3(sample, now)
	}
}

// dataWire2 accumulates one bit for the 2-wire variant. The previous bit is
// annotated here because its end sample is only known once the current
// clock edge arrives. The 9th rising edge belongs to the ACK pulse; it
// completes the byte and its slot in the bit buffer is discarded.
func (d *Decoder) dataWire2(sample signal.Sample, now int) {
	d.bits = append(d.bits, Bit{Value: sample.Dio, Start: now, End: now})
	if d.bitCount > 0 {
		prev := &d.bits[len(d.bits)-2]
		prev.End = now
		if d.bitCount <= 8 {
			d.putAnn(prev.Start, prev.End, Bits,
				[]string{strconv.Itoa(int(prev.Value))})
		}
	}
	d.bitCount++
	if d.bitCount <= 8 {
		// LSB-first: the earliest bit ends up least significant.
		d.dataByte >>= 1
		d.dataByte |= sample.Dio << 7
		return
	}

	bits := make([]Bit, 8)
	copy(bits, d.bits[:8])
	d.emitByte(bits, d.ssByte, now)
	d.clearData()
	d.ssAck = now // ACK window opens where the last data bit ended
	d.state = findAck
}

// dataWire3 accumulates one bit for the 3-wire variant. There is no ACK
// pulse to delimit bytes, so a completed byte is only flushed in arrears:
// by the first clock edge of the next byte, or by the stop handler.
func (d *Decoder) dataWire3(sample signal.Sample, now int) {
	if d.bitCount >= 8 {
		d.flushWire3(now)
		d.clearData()
		d.ssByte = now
	}
	d.bits = append(d.bits, Bit{Value: sample.Dio, Start: now, End: now})
	d.dataByte >>= 1
	d.dataByte |= sample.Dio << 7
	if d.bitCount > 0 {
		d.bits[len(d.bits)-2].End = now
	}
	d.bitCount++
}

// flushWire3 emits the pending 3-wire byte, if any. Per-bit annotations are
// deferred until here because the final bit's end sample is unknowable
// before the byte boundary. An empty accumulator is a no-op.
func (d *Decoder) flushWire3(now int) {
	if len(d.bits) == 0 {
		return
	}
	d.bits[len(d.bits)-1].End = now
	for _, b := range d.bits {
		d.putAnn(b.Start, b.End, Bits, []string{strconv.Itoa(int(b.Value))})
	}
	bits := make([]Bit, len(d.bits))
	copy(bits, d.bits)
	d.emitByte(bits, d.ssByte, now)
}

// emitByte emits a completed byte on all output streams. The first byte of
// a session is the command byte, all following bytes are data.
func (d *Decoder) emitByte(bits []Bit, ss, es int) {
	kind := Data
	if d.byteCount == 0 {
		kind = Command
	}
	d.out.Event(Event{Kind: Bits, Start: ss, End: es, Bits: bits})
	d.out.Event(Event{Kind: kind, Start: ss, End: es, Byte: d.dataByte})
	d.out.Binary(ss, es, []byte{d.dataByte})
	d.putAnn(ss, es, kind, composeAnnot(labels[kind], d.radix.Format(d.dataByte)))
	d.byteCount++
}

// handleAck classifies the ACK/NACK bit at the falling clock edge following
// a 2-wire byte: DIO low is ACK, high is NACK.
func (d *Decoder) handleAck(sample signal.Sample) {
	now := d.src.SampleIndex()
	kind := Ack
	if sample.Dio != 0 {
		kind = Nack
	}
	d.out.Event(Event{Kind: kind, Start: d.ssAck, End: now})
	d.putAnn(d.ssAck, now, kind, labels[kind])
	d.state = findData
}

func (d *Decoder) handleStop() {
	now := d.src.SampleIndex()
	d.reportBitrate(now)
	if d.bus == Wire3 {
		d.flushWire3(now)
	}
	d.out.Event(Event{Kind: Stop, Start: now, End: now})
	d.putAnn(now, now, Stop, labels[Stop])
	d.clearData()
	d.state = findStart
}

// reportBitrate emits the session bitrate metric. A degenerate window
// (start and stop on the same or adjacent samples) emits nothing.
func (d *Decoder) reportBitrate(now int) {
	elapsed := float64(now-d.pduStart-1) / d.sampleRate
	if elapsed == 0 {
		return
	}
	bitrate := int(float64(d.pduBits) / elapsed)
	d.out.Metric(d.ssByte, now, "Bitrate", bitrate)
}

func (d *Decoder) putAnn(ss, es int, kind EventKind, texts []string) {
	d.out.Annotation(Annotation{Kind: kind, Start: ss, End: es, Texts: texts})
}
