package capture

import "fmt"

// EventType identifies the kind of notification a capture engine emits.
type EventType int

const (
	// EventStarted - engine began listening.
	EventStarted EventType = iota
	// EventPartial - interim hypothesis for the current utterance.
	EventPartial
	// EventFinal - committed text for the current utterance.
	EventFinal
	// EventFault - engine reported an error.
	EventFault
	// EventEnded - engine stopped listening, for any reason.
	EventEnded
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "STARTED"
	case EventPartial:
		return "PARTIAL"
	case EventFinal:
		return "FINAL"
	case EventFault:
		return "FAULT"
	case EventEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

// FaultKind is the parsed form of an engine error code.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultPermissionDenied
	FaultAborted
	FaultNoSpeech
	FaultNetwork
	FaultOther
)

// Engine error codes.
const (
	CodeNotAllowed = "not-allowed"
	CodeAborted    = "aborted"
	CodeNoSpeech   = "no-speech"
	CodeNetwork    = "network"
)

// ParseFaultKind maps an engine error code to a FaultKind.
// Unknown codes are FaultOther.
func ParseFaultKind(code string) FaultKind {
	switch code {
	case CodeNotAllowed:
		return FaultPermissionDenied
	case CodeAborted:
		return FaultAborted
	case CodeNoSpeech:
		return FaultNoSpeech
	case CodeNetwork:
		return FaultNetwork
	default:
		return FaultOther
	}
}

// String returns the string representation of the fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "NONE"
	case FaultPermissionDenied:
		return "PERMISSION_DENIED"
	case FaultAborted:
		return "ABORTED"
	case FaultNoSpeech:
		return "NO_SPEECH"
	case FaultNetwork:
		return "NETWORK_ERROR"
	case FaultOther:
		return "OTHER"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", k)
	}
}

// Fault is an engine error. Code is the raw engine code and stays inside
// this package; observers only ever see the classified Notice.
type Fault struct {
	Kind FaultKind
	Code string
}

// Event is one notification from a capture engine.
// Text is set for EventPartial and EventFinal, Fault for EventFault.
type Event struct {
	Type  EventType
	Text  string
	Fault Fault
}

// Started returns an EventStarted.
func Started() Event { return Event{Type: EventStarted} }

// Partial returns an EventPartial carrying text.
func Partial(text string) Event { return Event{Type: EventPartial, Text: text} }

// Final returns an EventFinal carrying text.
func Final(text string) Event { return Event{Type: EventFinal, Text: text} }

// FaultEvent returns an EventFault for a raw engine error code.
func FaultEvent(code string) Event {
	return Event{Type: EventFault, Fault: Fault{Kind: ParseFaultKind(code), Code: code}}
}

// Ended returns an EventEnded.
func Ended() Event { return Event{Type: EventEnded} }
