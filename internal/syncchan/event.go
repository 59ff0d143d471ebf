package syncchan

// EventKind tags a transport event.
type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventErrored
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventErrored:
		return "errored"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one item of the transport stream.
type Event struct {
	Kind     EventKind
	Payload  string
	Err      error
	Retrying bool
}
