package decoder

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/sigdec/tmc/signal"
)

// recorder collects decoder output for assertions.
type recorder struct {
	events  []Event
	anns    []Annotation
	raw     []byte
	metrics []recordedMetric
}

type recordedMetric struct {
	name       string
	start, end int
	value      int
}

func (r *recorder) Event(e Event)           { r.events = append(r.events, e) }
func (r *recorder) Annotation(a Annotation) { r.anns = append(r.anns, a) }
func (r *recorder) Binary(start, end int, data []byte) {
	r.raw = append(r.raw, data...)
}
func (r *recorder) Metric(start, end int, name string, value int) {
	r.metrics = append(r.metrics, recordedMetric{name: name, start: start, end: end, value: value})
}

// byKind returns the recorded events of one kind, in emission order.
func (r *recorder) byKind(kind EventKind) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// wave builds packed sample streams level by level.
type wave struct {
	samples []byte
}

// hold appends n samples with the given channel levels.
func (w *wave) hold(n int, clk, dio, stb uint8) {
	b := clk | dio<<1 | stb<<2
	for i := 0; i < n; i++ {
		w.samples = append(w.samples, b)
	}
}

// pad extends the wave with its last sample until it is total samples long.
func (w *wave) pad(total int) {
	if len(w.samples) == 0 || len(w.samples) >= total {
		return
	}
	last := w.samples[len(w.samples)-1]
	for len(w.samples) < total {
		w.samples = append(w.samples, last)
	}
}

// wire2Wave builds a 2-wire session: idle, start condition at sample 10,
// one clock cell per data bit starting with the rising edge at sample 20
// (10 samples per cell), the 9th clock pulse carrying the ack level, and a
// stop condition at the given sample.
func wire2Wave(bits []uint8, ack uint8, stop int) []byte {
	w := &wave{}
	w.hold(10, 1, 1, 0) // idle: both lines high
	w.hold(5, 1, 0, 0)  // DIO falls while CLK high: start at 10
	for _, b := range bits {
		w.hold(5, 0, b, 0) // data changes while CLK low
		w.hold(5, 1, b, 0) // rising edge samples the bit
	}
	w.hold(5, 0, ack, 0) // 9th pulse: ACK level
	w.hold(5, 1, ack, 0)
	w.hold(5, 0, ack, 0) // falling edge at 105 samples ACK/NACK
	w.hold(1, 0, 0, 0)
	w.pad(stop - 50)
	w.hold(50, 1, 0, 0) // CLK returns high ahead of the stop
	w.pad(stop)
	w.hold(5, 1, 1, 0) // DIO rises while CLK high: stop
	return w.samples
}

// wire3Wave builds a 3-wire session: strobe falls at sample 10, one clock
// cell per data bit starting at sample 20, strobe rises at the given sample.
func wire3Wave(bits []uint8, stop int) []byte {
	w := &wave{}
	w.hold(10, 1, 0, 1) // idle: strobe high
	w.hold(5, 1, 0, 0)  // STB falls while CLK high: start at 10
	for _, b := range bits {
		w.hold(5, 0, b, 0)
		w.hold(5, 1, b, 0)
	}
	w.hold(5, 0, 0, 0)
	w.pad(stop)
	w.hold(5, 0, 0, 1) // STB rises: stop
	return w.samples
}

func runDecoder(t *testing.T, samples []byte, rate float64, hasStb bool) *recorder {
	t.Helper()
	rec := &recorder{}
	trace := signal.NewTrace(samples, rate, hasStb)
	if err := New(Hex).Run(trace, rec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return rec
}

func TestWire2Session(t *testing.T) {
	// Command byte 13 transmitted LSB-first, acknowledged, then stop.
	bits := []uint8{1, 0, 1, 1, 0, 0, 0, 0}
	rec := runDecoder(t, wire2Wave(bits, 0, 200), 1e6, false)

	want := []Event{
		{Kind: Start, Start: 10, End: 10},
		{Kind: Bits, Start: 20, End: 100, Bits: []Bit{
			{1, 20, 30}, {0, 30, 40}, {1, 40, 50}, {1, 50, 60},
			{0, 60, 70}, {0, 70, 80}, {0, 80, 90}, {0, 90, 100},
		}},
		{Kind: Command, Start: 20, End: 100, Byte: 13},
		{Kind: Ack, Start: 100, End: 105},
		{Kind: Stop, Start: 200, End: 200},
	}
	if !reflect.DeepEqual(rec.events, want) {
		t.Errorf("event stream mismatch:\ngot  %+v\nwant %+v", rec.events, want)
	}

	if !reflect.DeepEqual(rec.raw, []byte{13}) {
		t.Errorf("binary output = %v, want [13]", rec.raw)
	}

	// 10 clock pulses between start (10) and stop (200) at 1 MHz:
	// elapsed = 189 us, bitrate = 10 / 189e-6 truncated.
	if len(rec.metrics) != 1 {
		t.Fatalf("got %d metrics, want 1", len(rec.metrics))
	}
	m := rec.metrics[0]
	if m.name != "Bitrate" || m.value != 52910 || m.end != 200 {
		t.Errorf("metric = %+v, want Bitrate 52910 ending at 200", m)
	}
}

func TestWire2BitOrderLSBFirst(t *testing.T) {
	// The assembled byte must equal b0 | b1<<1 | ... | b7<<7.
	for _, value := range []byte{0x00, 0x01, 0x0d, 0x55, 0x80, 0xff} {
		bits := make([]uint8, 8)
		for i := range bits {
			bits[i] = uint8(value>>i) & 1
		}
		rec := runDecoder(t, wire2Wave(bits, 0, 200), 1e6, false)
		cmds := rec.byKind(Command)
		if len(cmds) != 1 {
			t.Fatalf("value %#02x: got %d command bytes, want 1", value, len(cmds))
		}
		if cmds[0].Byte != value {
			t.Errorf("value %#02x: assembled byte = %#02x", value, cmds[0].Byte)
		}
	}
}

func TestWire2Nack(t *testing.T) {
	bits := []uint8{1, 1, 1, 1, 0, 0, 0, 0}
	rec := runDecoder(t, wire2Wave(bits, 1, 200), 1e6, false)

	if got := rec.byKind(Nack); len(got) != 1 || got[0].Start != 100 || got[0].End != 105 {
		t.Errorf("NACK events = %+v, want one spanning 100-105", got)
	}
	if got := rec.byKind(Ack); len(got) != 0 {
		t.Errorf("unexpected ACK events: %+v", got)
	}
}

func TestWire2PerBitAnnotations(t *testing.T) {
	bits := []uint8{1, 0, 1, 1, 0, 0, 0, 0}
	rec := runDecoder(t, wire2Wave(bits, 0, 200), 1e6, false)

	var bitAnns []Annotation
	for _, a := range rec.anns {
		if a.Kind == Bits {
			bitAnns = append(bitAnns, a)
		}
	}
	// Exactly the 8 data bits are annotated, never the ACK slot.
	if len(bitAnns) != 8 {
		t.Fatalf("got %d bit annotations, want 8", len(bitAnns))
	}
	for i, a := range bitAnns {
		wantStart, wantEnd := 20+10*i, 30+10*i
		if a.Start != wantStart || a.End != wantEnd {
			t.Errorf("bit %d annotated at %d-%d, want %d-%d", i, a.Start, a.End, wantStart, wantEnd)
		}
		if want := []string{"1", "0", "1", "1", "0", "0", "0", "0"}[i]; a.Texts[0] != want {
			t.Errorf("bit %d annotated %q, want %q", i, a.Texts[0], want)
		}
	}
}

func TestWire3FlushOnStop(t *testing.T) {
	// Exactly 8 clock edges, then a strobe rising edge with no 9th clock:
	// the stop handler must flush the completed byte.
	bits := []uint8{0, 1, 0, 1, 0, 1, 0, 1}
	rec := runDecoder(t, wire3Wave(bits, 120), 1e6, true)

	cmds := rec.byKind(Command)
	if len(cmds) != 1 {
		t.Fatalf("got %d command bytes, want 1", len(cmds))
	}
	if cmds[0].Byte != 0xaa {
		t.Errorf("byte = %#02x, want 0xaa", cmds[0].Byte)
	}
	if cmds[0].Start != 20 || cmds[0].End != 120 {
		t.Errorf("byte span = %d-%d, want 20-120 (flushed at the stop)", cmds[0].Start, cmds[0].End)
	}

	stops := rec.byKind(Stop)
	if len(stops) != 1 || stops[0].Start != 120 {
		t.Errorf("stop events = %+v, want one at 120", stops)
	}
}

func TestWire3LookAheadFlush(t *testing.T) {
	// Two bytes back to back: the first is flushed by the 9th clock edge,
	// the second by the stop handler.
	bits := make([]uint8, 0, 16)
	bits = append(bits, 1, 0, 0, 0, 0, 0, 0, 0) // 0x01
	bits = append(bits, 0, 1, 0, 0, 0, 0, 0, 0) // 0x02
	rec := runDecoder(t, wire3Wave(bits, 220), 1e6, true)

	cmds := rec.byKind(Command)
	datas := rec.byKind(Data)
	if len(cmds) != 1 || len(datas) != 1 {
		t.Fatalf("got %d command, %d data bytes, want 1 and 1", len(cmds), len(datas))
	}
	if cmds[0].Byte != 0x01 || datas[0].Byte != 0x02 {
		t.Errorf("bytes = %#02x, %#02x, want 0x01, 0x02", cmds[0].Byte, datas[0].Byte)
	}
	// First byte's span ends at the 9th clock edge (sample 100), where the
	// second byte begins.
	if cmds[0].Start != 20 || cmds[0].End != 100 {
		t.Errorf("first byte span = %d-%d, want 20-100", cmds[0].Start, cmds[0].End)
	}
	if datas[0].Start != 100 || datas[0].End != 220 {
		t.Errorf("second byte span = %d-%d, want 100-220", datas[0].Start, datas[0].End)
	}
	if !reflect.DeepEqual(rec.raw, []byte{0x01, 0x02}) {
		t.Errorf("binary output = %v, want [1 2]", rec.raw)
	}
}

func TestWire3EmptySession(t *testing.T) {
	// Start followed directly by stop: the empty flush is a no-op and no
	// byte is emitted.
	w := &wave{}
	w.hold(10, 1, 0, 1)
	w.hold(5, 1, 0, 0) // start at 10
	w.hold(5, 1, 0, 1) // stop at 15
	rec := runDecoder(t, w.samples, 1e6, true)

	if n := len(rec.byKind(Command)) + len(rec.byKind(Data)); n != 0 {
		t.Errorf("got %d byte events from an empty session, want 0", n)
	}
	if len(rec.byKind(Start)) != 1 || len(rec.byKind(Stop)) != 1 {
		t.Errorf("expected exactly one start and one stop, got %+v", rec.events)
	}
}

func TestVariantTieBreak(t *testing.T) {
	// STB and DIO fall on the same sample while CLK is high: the strobe
	// patterns are listed first, so the session is 3-wire.
	w := &wave{}
	w.hold(10, 1, 1, 1)
	w.hold(5, 1, 0, 0) // both fall at 10
	w.hold(5, 1, 0, 1) // stop
	rec := runDecoder(t, w.samples, 1e6, true)

	// A 2-wire interpretation would enter findAck and never see this stop.
	if len(rec.byKind(Stop)) != 1 {
		t.Errorf("expected a 3-wire stop, got %+v", rec.events)
	}
}

func TestDegenerateBitrateWindow(t *testing.T) {
	// Stop on the sample adjacent to the start: elapsed is zero and no
	// metric is emitted.
	w := &wave{}
	w.hold(10, 1, 1, 0)
	w.hold(1, 1, 0, 0) // start at 10
	w.hold(5, 1, 1, 0) // stop at 11
	rec := runDecoder(t, w.samples, 1e6, false)

	if len(rec.metrics) != 0 {
		t.Errorf("got metrics %+v from a zero-elapsed window, want none", rec.metrics)
	}
	if len(rec.byKind(Start)) != 1 || len(rec.byKind(Stop)) != 1 {
		t.Errorf("expected one start and one stop, got %+v", rec.events)
	}
}

func TestStopOnlyState(t *testing.T) {
	// A decoder parked in the stop-seeking state recovers on the next stop
	// condition and resumes hunting for starts.
	w := &wave{}
	w.hold(5, 1, 1, 0) // idle, STB low
	w.hold(5, 1, 1, 1) // STB rises at 5: stop
	w.hold(5, 1, 1, 0) // STB falls at 10 with CLK high: start
	w.hold(5, 1, 1, 1) // STB rises at 15: stop

	rec := &recorder{}
	trace := signal.NewTrace(w.samples, 1e6, true)
	d := New(Hex)
	d.state = findStop
	d.bus = Wire3
	if err := d.Run(trace, rec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []Event{
		{Kind: Stop, Start: 5, End: 5},
		{Kind: Start, Start: 10, End: 10},
		{Kind: Stop, Start: 15, End: 15},
	}
	if !reflect.DeepEqual(rec.events, want) {
		t.Errorf("event stream mismatch:\ngot  %+v\nwant %+v", rec.events, want)
	}
}

func TestBitrateFormula(t *testing.T) {
	// From the session counters alone: 80 bits between samples 0 and 1001
	// at 1 MHz give elapsed (1001-0-1)/1e6 = 1 ms and bitrate 80000.
	rec := &recorder{}
	d := New(Hex)
	d.sampleRate = 1e6
	d.out = rec
	d.pduStart = 0
	d.pduBits = 80
	d.ssByte = 21
	d.reportBitrate(1001)

	if len(rec.metrics) != 1 {
		t.Fatalf("got %d metrics, want 1", len(rec.metrics))
	}
	m := rec.metrics[0]
	if m.value != 80000 {
		t.Errorf("bitrate = %d, want 80000", m.value)
	}
	if m.start != 21 || m.end != 1001 {
		t.Errorf("metric span = %d-%d, want 21-1001", m.start, m.end)
	}
}

func TestByteClassification(t *testing.T) {
	// Two sessions back to back: each session's first byte is COMMAND and
	// the counter resets at the second start.
	bits := []uint8{0, 0, 0, 0, 0, 0, 0, 1} // 0x80
	session := wire2Wave(bits, 0, 200)
	samples := append([]byte{}, session...)
	samples = append(samples, session...)
	rec := runDecoder(t, samples, 1e6, false)

	cmds := rec.byKind(Command)
	if len(cmds) != 2 {
		t.Fatalf("got %d command bytes across two sessions, want 2", len(cmds))
	}
	if len(rec.byKind(Data)) != 0 {
		t.Errorf("unexpected data bytes: %+v", rec.byKind(Data))
	}
	for i, c := range cmds {
		if c.Byte != 0x80 {
			t.Errorf("session %d command byte = %#02x, want 0x80", i, c.Byte)
		}
	}
}

func TestSpanOrdering(t *testing.T) {
	// Event spans within a session never go backwards.
	bits := []uint8{1, 0, 1, 1, 0, 0, 0, 0}
	rec := runDecoder(t, wire2Wave(bits, 0, 200), 1e6, false)

	prev := -1
	for _, e := range rec.events {
		if e.Start < prev {
			t.Errorf("event %v starts at %d, before previous start %d", e.Kind, e.Start, prev)
		}
		if e.End < e.Start {
			t.Errorf("event %v has negative span %d-%d", e.Kind, e.Start, e.End)
		}
		prev = e.Start
	}
}

func TestReset(t *testing.T) {
	bits := []uint8{1, 0, 1, 1, 0, 0, 0, 0}
	samples := wire2Wave(bits, 0, 200)

	d := New(Hex)
	first := &recorder{}
	if err := d.Run(signal.NewTrace(samples, 1e6, false), first); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	d.Reset()
	second := &recorder{}
	if err := d.Run(signal.NewTrace(samples, 1e6, false), second); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if !reflect.DeepEqual(first.events, second.events) {
		t.Errorf("events differ after reset:\nfirst  %+v\nsecond %+v", first.events, second.events)
	}
	if !reflect.DeepEqual(first.metrics, second.metrics) {
		t.Errorf("metrics differ after reset: %+v vs %+v", first.metrics, second.metrics)
	}
}

func TestMissingSampleRate(t *testing.T) {
	trace := signal.NewTrace([]byte{0}, 0, false)
	err := New(Hex).Run(trace, &recorder{})
	if !errors.Is(err, ErrNoSampleRate) {
		t.Errorf("err = %v, want ErrNoSampleRate", err)
	}
}

// channelLessSource reports no channels at all.
type channelLessSource struct{}

func (channelLessSource) SampleRate() float64            { return 1e6 }
func (channelLessSource) HasChannel(signal.Channel) bool { return false }
func (channelLessSource) SampleIndex() int               { return -1 }
func (channelLessSource) Wait([]signal.Pattern) (signal.Sample, int, error) {
	return signal.Sample{}, -1, io.EOF
}

func TestMissingChannels(t *testing.T) {
	err := New(Hex).Run(channelLessSource{}, &recorder{})
	if !errors.Is(err, ErrMissingChannel) {
		t.Errorf("err = %v, want ErrMissingChannel", err)
	}
}

func TestMissingStrobeIsNotAnError(t *testing.T) {
	// A 2-wire capture has no strobe line; decoding must proceed.
	bits := []uint8{1, 0, 1, 1, 0, 0, 0, 0}
	rec := runDecoder(t, wire2Wave(bits, 0, 200), 1e6, false)
	if len(rec.byKind(Command)) != 1 {
		t.Errorf("2-wire decode without strobe produced %+v", rec.events)
	}
}
