// Package models defines the notification payloads published to Kafka and
// pushed to websocket clients.
package models

// Event types.
const (
	EventCaptureState   = "reading.capture.state"
	EventCaptureNotice  = "reading.capture.notice"
	EventPlaybackState  = "reading.playback.state"
	EventPlaybackNotice = "reading.playback.notice"
	EventSummaryCreated = "reading.summary.created"
)

// CaptureState is a snapshot of the capture session.
type CaptureState struct {
	EventType         string `json:"eventType"`
	SessionID         string `json:"sessionId"`
	Timestamp         int64  `json:"timestamp"`
	Sequence          uint64 `json:"sequence"`
	State             string `json:"state"`
	IsActive          bool   `json:"isActive"`
	ShouldAutoRestart bool   `json:"shouldAutoRestart"`
	RestartPending    bool   `json:"restartPending"`
	Transcript        string `json:"transcript"`
	PendingPartial    string `json:"pendingPartial"`
	LastFault         string `json:"lastFault,omitempty"`
	Notice            string `json:"notice,omitempty"`
}

// CaptureNotice is a classified, user-facing capture fault.
type CaptureNotice struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Class     string `json:"class"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// PlaybackState reports whether something is being read aloud.
type PlaybackState struct {
	EventType  string  `json:"eventType"`
	RequestID  string  `json:"requestId,omitempty"`
	Timestamp  int64   `json:"timestamp"`
	IsSpeaking bool    `json:"isSpeaking"`
	Rate       float64 `json:"rate,omitempty"`
	Voice      string  `json:"voice,omitempty"`
}

// PlaybackNotice is a non-fatal playback failure.
type PlaybackNotice struct {
	EventType string `json:"eventType"`
	RequestID string `json:"requestId"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// SummaryCreated is emitted for every summary produced by the service.
type SummaryCreated struct {
	EventType  string `json:"eventType"`
	Source     string `json:"source"`
	Timestamp  int64  `json:"timestamp"`
	InputChars int    `json:"inputChars"`
	Summary    string `json:"summary"`
}
