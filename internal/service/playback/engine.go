// Package playback reads text aloud through a speech synthesis engine.
// At most one request speaks at a time; a new request replaces the current
// one instead of queueing behind it.
package playback

import (
	"context"
	"strings"
)

// Engine error codes that mean "cancelled on purpose".
const (
	CodeInterrupted = "interrupted"
	CodeCanceled    = "canceled"
)

// Default engine parameters.
const (
	DefaultRate   = 1.0
	DefaultVolume = 1.0
	DefaultPitch  = 1.0
	MinRate       = 0.25
	MaxRate       = 4.0
)

// Voice is one synthesis voice offered by the engine.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Utterance is a single engine call.
type Utterance struct {
	Id     string
	Text   string
	Rate   float64
	Volume float64
	Pitch  float64
	Voice  string
}

// Listener receives engine notifications. Every utterance accepted by Speak
// gets exactly one OnEnd or OnError.
type Listener interface {
	OnStart(id string)
	OnEnd(id string)
	OnError(id string, code string)
}

// VoiceDirectory lists the voices available for playback.
type VoiceDirectory interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// Engine is a speech synthesis provider (Google, mock, ...).
type Engine interface {
	VoiceDirectory

	// Name identifies the engine in logs.
	Name() string

	// Speak starts speaking u and returns without waiting for it to finish.
	Speak(ctx context.Context, u Utterance, l Listener) error

	// Cancel stops everything currently speaking. Cancelled utterances end
	// with OnError(id, "interrupted").
	Cancel() error
}

// PreferredVoice picks the first English voice, else the first voice.
func PreferredVoice(voices []Voice) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Language), "en") {
			return v, true
		}
	}
	return voices[0], true
}
