package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-reading-assistant/internal/observability/logging"
	"ai-reading-assistant/internal/observability/metrics"
)

var (
	ErrEngineUnavailable = errors.New("speech synthesis engine unavailable")
	ErrSpeakFailed       = errors.New("failed to start speech playback")
)

// MsgPlaybackFailed is the notice shown when the engine fails mid-request.
const MsgPlaybackFailed = "Speech playback failed. Please try again."

// Request is a user request to read text aloud.
type Request struct {
	Text  string  `json:"text"`
	Rate  float64 `json:"rate"`
	Voice string  `json:"voice,omitempty"`
}

// Status is a point-in-time copy of the controller state.
type Status struct {
	RequestId  string  `json:"requestId,omitempty"`
	IsSpeaking bool    `json:"isSpeaking"`
	Request    Request `json:"request"`
}

// Notice reports a non-fatal playback failure.
type Notice struct {
	RequestId string
	Message   string
}

// Observer receives playback updates. Called without the controller lock
// held; must not block.
type Observer interface {
	OnPlaybackState(s Status)
	OnPlaybackNotice(n Notice)
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver sets the observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithMetrics overrides metrics.DefaultMetrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

type active struct {
	id  string
	req Request
}

// Controller owns the playback engine. Thread-safe.
//
// Rules:
//   - Speak cancels whatever is speaking before issuing the new request.
//   - Engine notifications for anything but the current request are ignored,
//     so a late "interrupted" from a replaced request cannot clear isSpeaking.
//   - "interrupted" and "canceled" are expected and never surfaced.
//   - isSpeaking turns true on the engine's start notification for the
//     current request and false after every end, error, Stop, or failed Speak.
//   - Between Speak and that notification the request is pending: Current
//     reports it but IsSpeaking does not.
type Controller struct {
	mu sync.Mutex

	engine   Engine
	observer Observer
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	ids      idGenerator
	prefix   string

	current  *active
	speaking bool
}

// NewController creates a Controller. engine may be nil, in which case
// Speak reports ErrEngineUnavailable.
func NewController(engine Engine, opts ...Option) *Controller {
	c := &Controller{
		engine:  engine,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("playback"),
		prefix:  uuid.New().String()[:8],
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) engineName() string {
	if c.engine == nil {
		return "none"
	}
	return c.engine.Name()
}

// Speak cancels any current playback and starts speaking req.
// Whitespace-only text is ignored.
func (c *Controller) Speak(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return nil
	}
	if c.engine == nil {
		return ErrEngineUnavailable
	}

	c.mu.Lock()
	superseded := c.current != nil
	id := c.ids.Next(c.prefix)
	c.current = &active{id: id, req: req}
	if c.speaking {
		c.setSpeakingLocked(false)
	}
	st := c.statusLocked()
	c.mu.Unlock()

	logger := logging.WithRequest(id, c.engineName())
	if superseded {
		c.metrics.RecordPlaybackCancel("superseded")
		if err := c.engine.Cancel(); err != nil {
			logger.Warn().Err(err).Msg("Engine cancel returned error")
		}
	}

	u := Utterance{
		Id:     id,
		Text:   req.Text,
		Rate:   clampRate(req.Rate),
		Volume: DefaultVolume,
		Pitch:  DefaultPitch,
		Voice:  req.Voice,
	}
	c.metrics.RecordPlaybackRequest()
	c.dispatch(&st, nil)

	if err := c.engine.Speak(ctx, u, c); err != nil {
		c.mu.Lock()
		cleared := c.clearLocked(id)
		st := c.statusLocked()
		c.mu.Unlock()

		c.metrics.RecordPlaybackError("start")
		logger.Error().Err(err).Msg("Engine refused to speak")
		if cleared {
			c.dispatch(&st, nil)
		}
		return fmt.Errorf("%w: %v", ErrSpeakFailed, err)
	}

	logger.Info().Int("length", len(req.Text)).Float64("rate", u.Rate).Msg("Playback started")
	return nil
}

// Stop cancels playback. Safe to call when nothing is speaking.
func (c *Controller) Stop() {
	c.mu.Lock()
	had := c.current != nil
	c.current = nil
	c.setSpeakingLocked(false)
	st := c.statusLocked()
	c.mu.Unlock()

	if !had {
		return
	}
	c.metrics.RecordPlaybackCancel("stopped")
	if err := c.engine.Cancel(); err != nil {
		c.logger.Warn().Err(err).Msg("Engine cancel returned error")
	}
	c.dispatch(&st, nil)
}

// IsSpeaking reports whether a request is being spoken.
func (c *Controller) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Current returns the request being spoken, if any.
func (c *Controller) Current() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Request{}, false
	}
	return c.current.req, true
}

// Status returns a copy of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Voices lists the engine's voices.
func (c *Controller) Voices(ctx context.Context) ([]Voice, error) {
	if c.engine == nil {
		return nil, ErrEngineUnavailable
	}
	return c.engine.Voices(ctx)
}

// OnStart implements Listener. Only the current request turns speaking on.
func (c *Controller) OnStart(id string) {
	c.mu.Lock()
	if c.current == nil || c.current.id != id || c.speaking {
		c.mu.Unlock()
		return
	}
	c.setSpeakingLocked(true)
	st := c.statusLocked()
	c.mu.Unlock()

	c.logger.Debug().Str("requestId", id).Msg("Engine speaking")
	c.dispatch(&st, nil)
}

// OnEnd implements Listener.
func (c *Controller) OnEnd(id string) {
	c.mu.Lock()
	cleared := c.clearLocked(id)
	st := c.statusLocked()
	c.mu.Unlock()

	if !cleared {
		return
	}
	c.logger.Debug().Str("requestId", id).Msg("Playback finished")
	c.dispatch(&st, nil)
}

// OnError implements Listener.
func (c *Controller) OnError(id string, code string) {
	c.mu.Lock()
	cleared := c.clearLocked(id)
	st := c.statusLocked()
	c.mu.Unlock()

	if code == CodeInterrupted || code == CodeCanceled {
		if cleared {
			c.dispatch(&st, nil)
		}
		return
	}

	c.metrics.RecordPlaybackError(code)
	c.logger.Warn().Str("requestId", id).Str("code", code).Msg("Playback engine error")
	if !cleared {
		return
	}
	c.dispatch(&st, &Notice{RequestId: id, Message: MsgPlaybackFailed})
}

// clearLocked ends the current request if it is id.
func (c *Controller) clearLocked(id string) bool {
	if c.current == nil || c.current.id != id {
		return false
	}
	c.current = nil
	c.setSpeakingLocked(false)
	return true
}

func (c *Controller) setSpeakingLocked(speaking bool) {
	c.speaking = speaking
	c.metrics.RecordSpeaking(speaking)
}

func (c *Controller) statusLocked() Status {
	st := Status{IsSpeaking: c.speaking}
	if c.current != nil {
		st.RequestId = c.current.id
		st.Request = c.current.req
	}
	return st
}

func (c *Controller) dispatch(st *Status, n *Notice) {
	if c.observer == nil {
		return
	}
	if st != nil {
		c.observer.OnPlaybackState(*st)
	}
	if n != nil {
		c.observer.OnPlaybackNotice(*n)
	}
}

func clampRate(rate float64) float64 {
	switch {
	case rate <= 0:
		return DefaultRate
	case rate < MinRate:
		return MinRate
	case rate > MaxRate:
		return MaxRate
	default:
		return rate
	}
}
