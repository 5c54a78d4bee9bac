package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-reading-assistant/internal/models"
	"ai-reading-assistant/internal/service/capture"
	"ai-reading-assistant/internal/service/playback"
)

const (
	bridgeQueueSize = 256
	noSession       = "none"
)

// Sink is the publishing side of the bridge. *Publisher implements it.
type Sink interface {
	PublishCapture(ctx context.Context, key, eventType string, event any) error
	PublishPlayback(ctx context.Context, key, eventType string, event any) error
	PublishSummary(ctx context.Context, key, eventType string, event any) error
}

// Broadcaster pushes events to live clients. *Hub implements it.
type Broadcaster interface {
	Broadcast(event any)
}

type topic int

const (
	topicCapture topic = iota
	topicPlayback
	topicSummary
)

type job struct {
	topic     topic
	key       string
	eventType string
	event     any
}

// Bridge turns capture and playback observer callbacks into notification
// events. Callbacks only enqueue; Run does the publishing.
type Bridge struct {
	sink  Sink
	hub   Broadcaster
	queue chan job
	now   func() time.Time

	mu      sync.Mutex
	lastSeq uint64
}

var (
	_ capture.Observer  = (*Bridge)(nil)
	_ playback.Observer = (*Bridge)(nil)
)

// NewBridge creates a bridge. hub may be nil.
func NewBridge(sink Sink, hub Broadcaster) *Bridge {
	return &Bridge{
		sink:  sink,
		hub:   hub,
		queue: make(chan job, bridgeQueueSize),
		now:   time.Now,
	}
}

// Run publishes queued events until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-b.queue:
			b.publish(ctx, j)
		}
	}
}

func (b *Bridge) publish(ctx context.Context, j job) {
	var err error
	switch j.topic {
	case topicCapture:
		err = b.sink.PublishCapture(ctx, j.key, j.eventType, j.event)
	case topicPlayback:
		err = b.sink.PublishPlayback(ctx, j.key, j.eventType, j.event)
	case topicSummary:
		err = b.sink.PublishSummary(ctx, j.key, j.eventType, j.event)
	}
	if err != nil {
		log.Warn().Err(err).Str("eventType", j.eventType).Msg("Notification not published")
	}
}

func (b *Bridge) enqueue(j job) {
	if b.hub != nil {
		b.hub.Broadcast(j.event)
	}
	select {
	case b.queue <- j:
	default:
		log.Warn().Str("eventType", j.eventType).Msg("Notification queue full, dropping event")
	}
}

// OnStateChange implements capture.Observer. Snapshots older than one
// already forwarded are dropped.
func (b *Bridge) OnStateChange(s capture.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.Seq != 0 && s.Seq <= b.lastSeq {
		log.Debug().Uint64("seq", s.Seq).Uint64("lastSeq", b.lastSeq).Msg("Dropping stale capture state")
		return
	}
	b.lastSeq = s.Seq

	key := sessionKey(s.SessionId)
	ev := models.CaptureState{
		EventType:         models.EventCaptureState,
		SessionID:         key,
		Timestamp:         b.now().UnixMilli(),
		Sequence:          s.Seq,
		State:             s.State.String(),
		IsActive:          s.IsActive,
		ShouldAutoRestart: s.ShouldAutoRestart,
		RestartPending:    s.RestartPending,
		Transcript:        s.CommittedTranscript,
		PendingPartial:    s.PendingPartial,
		Notice:            s.Notice,
	}
	if s.LastFault != capture.FaultNone {
		ev.LastFault = s.LastFault.String()
	}
	b.enqueue(job{topic: topicCapture, key: key, eventType: ev.EventType, event: ev})
}

// OnNotice implements capture.Observer.
func (b *Bridge) OnNotice(n capture.Notice) {
	key := sessionKey(n.SessionId)
	ev := models.CaptureNotice{
		EventType: models.EventCaptureNotice,
		SessionID: key,
		Timestamp: b.now().UnixMilli(),
		Class:     n.Class.String(),
		Kind:      n.Kind.String(),
		Message:   n.Message,
	}
	b.enqueue(job{topic: topicCapture, key: key, eventType: ev.EventType, event: ev})
}

// OnPlaybackState implements playback.Observer.
func (b *Bridge) OnPlaybackState(s playback.Status) {
	ev := models.PlaybackState{
		EventType:  models.EventPlaybackState,
		RequestID:  s.RequestId,
		Timestamp:  b.now().UnixMilli(),
		IsSpeaking: s.IsSpeaking,
		Rate:       s.Request.Rate,
		Voice:      s.Request.Voice,
	}
	b.enqueue(job{topic: topicPlayback, key: s.RequestId, eventType: ev.EventType, event: ev})
}

// OnPlaybackNotice implements playback.Observer.
func (b *Bridge) OnPlaybackNotice(n playback.Notice) {
	ev := models.PlaybackNotice{
		EventType: models.EventPlaybackNotice,
		RequestID: n.RequestId,
		Timestamp: b.now().UnixMilli(),
		Message:   n.Message,
	}
	b.enqueue(job{topic: topicPlayback, key: n.RequestId, eventType: ev.EventType, event: ev})
}

// Summarized records a summary produced through source (http, grpc, mcp, watch).
func (b *Bridge) Summarized(source string, inputChars int, summary string) {
	if summary == "" {
		return
	}
	ev := models.SummaryCreated{
		EventType:  models.EventSummaryCreated,
		Source:     source,
		Timestamp:  b.now().UnixMilli(),
		InputChars: inputChars,
		Summary:    summary,
	}
	b.enqueue(job{topic: topicSummary, key: source, eventType: ev.EventType, event: ev})
}

func sessionKey(id string) string {
	if id == "" {
		return noSession
	}
	return id
}
