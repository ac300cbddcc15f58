package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sigdec/tmc/decoder"
)

// YAML export of a decoded event stream.

type exportBit struct {
	Value int `yaml:"value"`
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

type exportEvent struct {
	Kind  string      `yaml:"kind"`
	Start int         `yaml:"start"`
	End   int         `yaml:"end"`
	Value *int        `yaml:"value,omitempty"`
	Bits  []exportBit `yaml:"bits,omitempty"`
}

type exportMetric struct {
	Name  string `yaml:"name"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Value int    `yaml:"value"`
}

type exportDoc struct {
	File       string         `yaml:"file"`
	SampleRate float64        `yaml:"samplerate"`
	Events     []exportEvent  `yaml:"events"`
	Metrics    []exportMetric `yaml:"metrics,omitempty"`
}

// writeExport writes the recorded decoder output to a YAML file.
func writeExport(filename, captureFile string, sampleRate float64, p *printer) error {
	doc := exportDoc{
		File:       captureFile,
		SampleRate: sampleRate,
		Events:     make([]exportEvent, 0, len(p.events)),
	}

	for _, e := range p.events {
		ev := exportEvent{
			Kind:  e.Kind.String(),
			Start: e.Start,
			End:   e.End,
		}
		switch e.Kind {
		case decoder.Command, decoder.Data:
			v := int(e.Byte)
			ev.Value = &v
		case decoder.Bits:
			for _, b := range e.Bits {
				ev.Bits = append(ev.Bits, exportBit{
					Value: int(b.Value),
					Start: b.Start,
					End:   b.End,
				})
			}
		}
		doc.Events = append(doc.Events, ev)
	}

	for _, m := range p.metrics {
		doc.Metrics = append(doc.Metrics, exportMetric(m))
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}
