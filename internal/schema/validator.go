// Package schema checks notification payloads before they leave the service.
package schema

import (
	"errors"
	"fmt"

	"ai-reading-assistant/internal/models"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrUnknownEvent = errors.New("unknown event type")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the required fields of a models payload.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.CaptureState:
		return require(e.EventType, models.EventCaptureState,
			field{"sessionId", e.SessionID != ""},
			field{"timestamp", e.Timestamp > 0},
			field{"state", e.State != ""})
	case models.CaptureNotice:
		return require(e.EventType, models.EventCaptureNotice,
			field{"timestamp", e.Timestamp > 0},
			field{"class", e.Class != ""},
			field{"message", e.Message != ""})
	case models.PlaybackState:
		return require(e.EventType, models.EventPlaybackState,
			field{"timestamp", e.Timestamp > 0})
	case models.PlaybackNotice:
		return require(e.EventType, models.EventPlaybackNotice,
			field{"requestId", e.RequestID != ""},
			field{"timestamp", e.Timestamp > 0},
			field{"message", e.Message != ""})
	case models.SummaryCreated:
		return require(e.EventType, models.EventSummaryCreated,
			field{"source", e.Source != ""},
			field{"timestamp", e.Timestamp > 0},
			field{"summary", e.Summary != ""})
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

type field struct {
	name    string
	present bool
}

func require(eventType, want string, fields ...field) error {
	if eventType != want {
		return fmt.Errorf("%w: eventType %q, want %q", ErrUnknownEvent, eventType, want)
	}
	for _, f := range fields {
		if !f.present {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return nil
}
