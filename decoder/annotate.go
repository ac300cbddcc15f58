package decoder

import (
	"fmt"
	"sort"
	"strings"
)

// Annotation labels per event kind, ordered from longest to shortest.
// The table is built once and never mutated.
var labels = map[EventKind][]string{
	Start:   {"Start", "S"},
	Stop:    {"Stop", "P"},
	Ack:     {"ACK", "A"},
	Nack:    {"NACK", "N"},
	Command: {"Command", "Cmd", "C"},
	Data:    {"Data", "D"},
	Bits:    {"Bit", "B"},
}

// Radix selects the numeric base for human-readable byte formatting.
// It affects annotations only, never structured or binary output.
type Radix int

const (
	Hex Radix = iota // default
	Dec
	Oct
	Bin
)

// ParseRadix parses a radix name, case-insensitively.
func ParseRadix(s string) (Radix, error) {
	switch strings.ToUpper(s) {
	case "HEX":
		return Hex, nil
	case "DEC":
		return Dec, nil
	case "OCT":
		return Oct, nil
	case "BIN":
		return Bin, nil
	default:
		return Hex, fmt.Errorf("unknown radix %q (want Hex, Dec, Oct or Bin)", s)
	}
}

// String returns the radix option name.
func (r Radix) String() string {
	switch r {
	case Dec:
		return "Dec"
	case Oct:
		return "Oct"
	case Bin:
		return "Bin"
	default:
		return "Hex"
	}
}

// Format renders a byte value in the selected radix. Hex values are
// zero-padded to at least two digits.
func (r Radix) Format(v byte) string {
	switch r {
	case Dec:
		return fmt.Sprintf("%d", v)
	case Oct:
		return fmt.Sprintf("0o%o", v)
	case Bin:
		return fmt.Sprintf("0b%b", v)
	default:
		return fmt.Sprintf("%#04x", v)
	}
}

// composeAnnot builds annotation display variants from a label list and a
// formatted value: every "<label>: <value>" combination plus the last two
// labels bare, sorted by length descending so the longest variant comes
// first.
func composeAnnot(labels []string, value string) []string {
	annots := make([]string, 0, len(labels)+2)
	for _, lbl := range labels {
		annots = append(annots, lbl+": "+value)
	}
	from := len(labels) - 2
	if from < 0 {
		from = 0
	}
	annots = append(annots, labels[from:]...)
	sort.SliceStable(annots, func(i, j int) bool {
		return len(annots[i]) > len(annots[j])
	})
	return annots
}
