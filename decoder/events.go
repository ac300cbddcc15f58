package decoder

// EventKind classifies decoded protocol events.
type EventKind int

const (
	Start EventKind = iota
	Stop
	Ack
	Nack
	Command
	Data
	Bits
)

// String returns the wire-level event tag.
func (k EventKind) String() string {
	switch k {
	case Start:
		return "START"
	case Stop:
		return "STOP"
	case Ack:
		return "ACK"
	case Nack:
		return "NACK"
	case Command:
		return "COMMAND"
	case Data:
		return "DATA"
	case Bits:
		return "BITS"
	default:
		return "Unknown"
	}
}

// Bit is a single decoded data bit with its sample span.
// End is fixed when the next bit arrives or a byte/stop boundary is reached.
type Bit struct {
	Value uint8
	Start int
	End   int
}

// Event is a structured protocol event with its sample span.
// Byte is meaningful for Command/Data events, Bits for a Bits event;
// Start/Stop/Ack/Nack carry no payload.
type Event struct {
	Kind  EventKind
	Start int
	End   int
	Byte  byte
	Bits  []Bit
}

// Annotation is a human-readable event. Texts holds display variants
// ordered from longest to shortest so hosts can adapt to display width.
type Annotation struct {
	Kind  EventKind
	Start int
	End   int
	Texts []string
}

// Sink receives decoder output. The four methods correspond to the four
// output streams: structured events, human-readable annotations, raw
// assembled bytes, and numeric metrics.
type Sink interface {
	Event(e Event)
	Annotation(a Annotation)
	Binary(start, end int, data []byte)
	Metric(start, end int, name string, value int)
}
