package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Envelope is one notification read back from Kafka.
type Envelope struct {
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

// ConsumerConfig selects what Consume reads.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	// Since rewinds partition 0 to messages newer than this.
	Since time.Duration
}

// Consume reads partition 0 of cfg.Topic and calls handle for every message
// until ctx is cancelled. Read errors are logged and retried.
func Consume(ctx context.Context, cfg ConsumerConfig, handle func(Envelope)) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if cfg.Since > 0 {
		if err := reader.SetOffsetAt(ctx, time.Now().Add(-cfg.Since)); err != nil {
			log.Warn().Err(err).Str("topic", cfg.Topic).Msg("Could not rewind reader")
		}
	}

	log.Info().Str("topic", cfg.Topic).Strs("brokers", cfg.Brokers).Msg("Consuming notifications")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("topic", cfg.Topic).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		handle(envelopeFromMessage(msg))
	}
}

func envelopeFromMessage(msg kafka.Message) Envelope {
	env := Envelope{
		Topic:   msg.Topic,
		Key:     string(msg.Key),
		Payload: json.RawMessage(msg.Value),
	}
	for _, h := range msg.Headers {
		if h.Key == "eventType" {
			env.EventType = string(h.Value)
		}
	}
	if !json.Valid(msg.Value) {
		env.Payload = nil
	}
	return env
}
