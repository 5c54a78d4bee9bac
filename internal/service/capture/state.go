package capture

import (
	"errors"
	"fmt"
)

// State is the externally visible state of a capture session.
type State int

const (
	// StateIdle - not listening and no restart pending.
	StateIdle State = iota
	// StateListening - engine is running.
	StateListening
	// StateFaultedRetrying - a recoverable fault happened or the engine ended
	// on its own; listening resumes automatically.
	StateFaultedRetrying
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateFaultedRetrying:
		return "FAULTED_RETRYING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors returned by Manager.Start.
var (
	ErrEngineUnavailable = errors.New("speech recognition engine unavailable")
	ErrStartFailed       = errors.New("failed to start speech recognition")
	// ErrAlreadyListening wraps ErrStartFailed. The running session is left
	// untouched.
	ErrAlreadyListening = fmt.Errorf("%w: already listening", ErrStartFailed)
)

// ErrorClass tells the presentation layer how to treat a fault.
type ErrorClass int

const (
	// ClassFatal - listening stopped; the user must act before retrying.
	ClassFatal ErrorClass = iota
	// ClassRecoverableSilent - expected side effect of an intentional stop.
	// Never delivered to observers.
	ClassRecoverableSilent
	// ClassRecoverableNotified - listening stopped; the user may start again.
	ClassRecoverableNotified
	// ClassTransient - informational; listening resumes automatically.
	ClassTransient
)

// String returns the string representation of the class.
func (c ErrorClass) String() string {
	switch c {
	case ClassFatal:
		return "FATAL"
	case ClassRecoverableSilent:
		return "RECOVERABLE_SILENT"
	case ClassRecoverableNotified:
		return "RECOVERABLE_NOTIFIED"
	case ClassTransient:
		return "TRANSIENT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", c)
	}
}

// User-facing messages.
const (
	MsgPermissionDenied   = "Microphone access denied. Please allow microphone access and try again."
	MsgAbortedUnexpected  = "Speech recognition stopped unexpectedly. Start listening again to continue."
	MsgNoSpeech           = "No speech detected. Listening will continue automatically..."
	MsgNetwork            = "Network error. Please check your internet connection."
	MsgEngineError        = "Speech recognition hit an error. Listening will continue automatically..."
	MsgStartFailed        = "Failed to start speech recognition. Please try again."
	MsgEngineUnavailable  = "Speech recognition is not available on this system."
	MsgPermissionRequired = "Microphone access is required to start listening."
)

// Notice is a classified, human-readable fault report.
type Notice struct {
	SessionId string
	Class     ErrorClass
	Kind      FaultKind
	Message   string
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	// Seq increases with every snapshot a Manager takes. Observers are called
	// outside the lock, so a lower Seq than one already seen is stale.
	Seq                  uint64
	SessionId            string
	State                State
	IsActive             bool
	ShouldAutoRestart    bool
	StoppedIntentionally bool
	RestartPending       bool
	CommittedTranscript  string
	PendingPartial       string
	LastFault            FaultKind
	// Notice is the last message surfaced to the user, cleared on EventStarted.
	Notice string
}

// Observer receives session updates. Calls are made without the manager's
// lock held, so an observer may call back into the manager. Implementations
// must not block.
type Observer interface {
	OnStateChange(s Snapshot)
	OnNotice(n Notice)
}

// classification is the manager's reaction to a fault kind.
type classification struct {
	class ErrorClass
	// retry: the fault keeps the session alive and lets it auto-restart.
	retry   bool
	message string
}

func classify(kind FaultKind, stoppedIntentionally bool) classification {
	switch kind {
	case FaultPermissionDenied:
		return classification{class: ClassFatal, message: MsgPermissionDenied}
	case FaultAborted:
		if stoppedIntentionally {
			return classification{class: ClassRecoverableSilent}
		}
		return classification{class: ClassRecoverableNotified, message: MsgAbortedUnexpected}
	case FaultNoSpeech:
		return classification{class: ClassTransient, retry: true, message: MsgNoSpeech}
	case FaultNetwork:
		return classification{class: ClassFatal, message: MsgNetwork}
	default:
		return classification{class: ClassTransient, retry: true, message: MsgEngineError}
	}
}
