package cmd

import (
	"fmt"
	"io"

	"github.com/sigdec/tmc/decoder"
)

// metric is one recorded metric emission.
type metric struct {
	Name  string
	Start int
	End   int
	Value int
}

// printer is the terminal output sink: it prints annotations and metrics as
// they are emitted and records everything for export after the run.
type printer struct {
	w        io.Writer
	showBits bool

	events  []decoder.Event
	metrics []metric
	raw     []byte
}

func newPrinter(w io.Writer, showBits bool) *printer {
	return &printer{w: w, showBits: showBits}
}

func (p *printer) Event(e decoder.Event) {
	p.events = append(p.events, e)
}

func (p *printer) Annotation(a decoder.Annotation) {
	if a.Kind == decoder.Bits && !p.showBits {
		return
	}
	fmt.Fprintf(p.w, "%8d-%-8d %s\n", a.Start, a.End, a.Texts[0])
}

func (p *printer) Binary(start, end int, data []byte) {
	p.raw = append(p.raw, data...)
}

func (p *printer) Metric(start, end int, name string, value int) {
	p.metrics = append(p.metrics, metric{Name: name, Start: start, End: end, Value: value})
	fmt.Fprintf(p.w, "%8d-%-8d %s: %d\n", start, end, name, value)
}
