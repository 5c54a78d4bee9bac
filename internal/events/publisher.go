// Package events publishes capture, playback and summary notifications to
// Kafka and fans them out to websocket clients.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-reading-assistant/internal/observability/metrics"
	"ai-reading-assistant/internal/schema"
)

// Publisher publishes notification events to one Kafka topic per concern.
type Publisher struct {
	writerCapture  *kafka.Writer
	writerPlayback *kafka.Writer
	writerSummary  *kafka.Writer
	principal      string
	topicCapture   string
	topicPlayback  string
	topicSummary   string
	enabled        bool
	validator      *schema.Validator
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicCapture  string
	TopicPlayback string
	TopicSummary  string
	Principal     string
	Enabled       bool
}

// New creates a publisher. When Kafka is disabled events are only logged.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{validator: v, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicCapture:  cfg.TopicCapture,
			topicPlayback: cfg.TopicPlayback,
			topicSummary:  cfg.TopicSummary,
			validator:     v,
			metrics:       m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCapture", cfg.TopicCapture).
		Str("topicPlayback", cfg.TopicPlayback).
		Str("topicSummary", cfg.TopicSummary).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerCapture:  newWriter(cfg.Brokers, cfg.TopicCapture, transport),
		writerPlayback: newWriter(cfg.Brokers, cfg.TopicPlayback, transport),
		writerSummary:  newWriter(cfg.Brokers, cfg.TopicSummary, transport),
		principal:      cfg.Principal,
		topicCapture:   cfg.TopicCapture,
		topicPlayback:  cfg.TopicPlayback,
		topicSummary:   cfg.TopicSummary,
		enabled:        true,
		validator:      v,
		metrics:        m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishCapture publishes a capture state or notice event keyed by session.
func (p *Publisher) PublishCapture(ctx context.Context, key, eventType string, event any) error {
	return p.publish(ctx, p.writerCapture, p.topicCapture, eventType, key, event)
}

// PublishPlayback publishes a playback state or notice event keyed by request.
func (p *Publisher) PublishPlayback(ctx context.Context, key, eventType string, event any) error {
	return p.publish(ctx, p.writerPlayback, p.topicPlayback, eventType, key, event)
}

// PublishSummary publishes a summary event.
func (p *Publisher) PublishSummary(ctx context.Context, key, eventType string, event any) error {
	return p.publish(ctx, p.writerSummary, p.topicSummary, eventType, key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if p.validator != nil {
		if err := p.validator.Validate(event); err != nil {
			log.Error().Err(err).Str("topic", topic).Str("eventType", eventType).Msg("Rejected invalid event")
			p.metrics.RecordNotifyPublish(topic, eventType, err, time.Since(start).Seconds())
			return err
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordNotifyPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordNotifyPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordNotifyPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for name, w := range map[string]*kafka.Writer{
		"capture":  p.writerCapture,
		"playback": p.writerPlayback,
		"summary":  p.writerSummary,
	} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("writer", name).Msg("Error closing writer")
			err = e
		}
	}
	return err
}
