package events

import (
	"context"
	"errors"
	"testing"

	"ai-reading-assistant/internal/models"
	"ai-reading-assistant/internal/schema"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerCapture != nil || p.writerPlayback != nil || p.writerSummary != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:       false,
		Brokers:       []string{"localhost:9092"},
		TopicCapture:  "test.capture",
		TopicPlayback: "test.playback",
		TopicSummary:  "test.summary",
		Principal:     "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicCapture != "test.capture" {
		t.Errorf("expected topic capture 'test.capture', got %s", p.topicCapture)
	}
	if p.topicPlayback != "test.playback" {
		t.Errorf("expected topic playback 'test.playback', got %s", p.topicPlayback)
	}
	if p.topicSummary != "test.summary" {
		t.Errorf("expected topic summary 'test.summary', got %s", p.topicSummary)
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{
		Enabled:       true,
		Brokers:       []string{"localhost:9092"},
		TopicCapture:  "c",
		TopicPlayback: "p",
		TopicSummary:  "s",
	})
	if !p.enabled {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerCapture.Topic != "c" || p.writerPlayback.Topic != "p" || p.writerSummary.Topic != "s" {
		t.Errorf("unexpected writer topics: %s %s %s", p.writerCapture.Topic, p.writerPlayback.Topic, p.writerSummary.Topic)
	}
	// Writers dial lazily, so closing without a broker is fine.
	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing unused writers, got %v", err)
	}
}

func TestPublisher_Disabled_ValidEvents(t *testing.T) {
	p := New(&Config{Enabled: false, Principal: "test-svc"})
	ctx := context.Background()

	if err := p.PublishCapture(ctx, "sess-1", models.EventCaptureState, models.CaptureState{
		EventType: models.EventCaptureState,
		SessionID: "sess-1",
		Timestamp: 1,
		State:     "LISTENING",
	}); err != nil {
		t.Errorf("expected no error for capture event, got %v", err)
	}

	if err := p.PublishPlayback(ctx, "req-1", models.EventPlaybackNotice, models.PlaybackNotice{
		EventType: models.EventPlaybackNotice,
		RequestID: "req-1",
		Timestamp: 1,
		Message:   "failed",
	}); err != nil {
		t.Errorf("expected no error for playback event, got %v", err)
	}

	if err := p.PublishSummary(ctx, "http", models.EventSummaryCreated, models.SummaryCreated{
		EventType: models.EventSummaryCreated,
		Source:    "http",
		Timestamp: 1,
		Summary:   "A summary.",
	}); err != nil {
		t.Errorf("expected no error for summary event, got %v", err)
	}
}

func TestPublisher_RejectsInvalidEvent(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.PublishCapture(context.Background(), "k", models.EventCaptureState, models.CaptureState{
		EventType: models.EventCaptureState,
		Timestamp: 1,
		State:     "IDLE",
	})
	if !errors.Is(err, schema.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}

	err = p.PublishSummary(context.Background(), "k", "x", make(chan int))
	if !errors.Is(err, schema.ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent for unsupported payload, got %v", err)
	}
}

func TestPublisher_UnvalidatedMarshalError(t *testing.T) {
	p := &Publisher{metrics: New(nil).metrics}

	err := p.PublishSummary(context.Background(), "k", "x", make(chan int))
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NilWriters(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
