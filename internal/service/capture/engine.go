// Package capture runs a continuous speech capture session on top of a
// speech recognition engine. The engine may stop on its own at any time
// (silence timeouts, network trouble); the Manager restarts it unless the
// user asked to stop.
package capture

import "context"

// EngineConfig is applied to an engine once, before its first start.
type EngineConfig struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// DefaultEngineConfig returns continuous recognition with interim results.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Continuous:     true,
		InterimResults: true,
		Language:       "en-US",
	}
}

// Sink receives engine events. Manager implements Sink.
type Sink interface {
	OnEvent(ev Event)
}

// Engine is a speech recognition provider (Google, mock, ...).
//
// After a successful Start the engine emits EventStarted, any number of
// EventPartial, EventFinal and EventFault, and exactly one EventEnded.
// Start must fail if the engine is already running. Events may be delivered
// from any goroutine, including synchronously from Start or Stop.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string

	// Configure applies cfg before the first Start.
	Configure(cfg EngineConfig) error

	// Start begins listening and delivers events to sink.
	Start(ctx context.Context, sink Sink) error

	// Stop asks the engine to stop. EventEnded follows, possibly preceded
	// by EventFault with code "aborted".
	Stop() error
}

// PermissionGate grants access to the microphone.
type PermissionGate interface {
	// Request returns false if the user or platform refused access.
	Request(ctx context.Context) (bool, error)
}
