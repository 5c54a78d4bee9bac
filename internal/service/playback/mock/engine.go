// Package mock provides a simulated playback engine for running without a
// speaker or cloud credentials. Speech takes as long as it would at a
// typical reading pace.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai-reading-assistant/internal/service/playback"
)

// WordsPerSecond at rate 1.0.
const WordsPerSecond = 2.5

// DefaultVoices are offered by Voices.
var DefaultVoices = []playback.Voice{
	{Name: "mock-de", Language: "de-DE"},
	{Name: "mock-en", Language: "en-US"},
}

type utterance struct {
	timer    *time.Timer
	listener playback.Listener
}

// Engine implements playback.Engine with timers.
type Engine struct {
	mu     sync.Mutex
	active map[string]*utterance
	// Failures maps an utterance text to an error code to report instead of
	// finishing. Test hook.
	Failures map[string]string
}

// New creates a new mock playback engine.
func New() *Engine {
	return &Engine{active: make(map[string]*utterance)}
}

func (e *Engine) Name() string { return "mock" }

// Duration is how long u takes to speak.
func Duration(u playback.Utterance) time.Duration {
	words := len(strings.Fields(u.Text))
	rate := u.Rate
	if rate <= 0 {
		rate = playback.DefaultRate
	}
	return time.Duration(float64(words) / (WordsPerSecond * rate) * float64(time.Second))
}

// Speak starts a timer for u.
func (e *Engine) Speak(ctx context.Context, u playback.Utterance, l playback.Listener) error {
	e.mu.Lock()
	code := e.Failures[u.Text]
	utt := &utterance{listener: l}
	e.active[u.Id] = utt
	utt.timer = time.AfterFunc(Duration(u), func() { e.finish(u.Id, code) })
	e.mu.Unlock()

	// No synthesis step, so speech starts before Speak returns.
	l.OnStart(u.Id)
	return nil
}

func (e *Engine) finish(id, code string) {
	e.mu.Lock()
	utt, ok := e.active[id]
	delete(e.active, id)
	e.mu.Unlock()
	if !ok {
		return
	}
	if code != "" {
		utt.listener.OnError(id, code)
		return
	}
	utt.listener.OnEnd(id)
}

// Cancel interrupts every active utterance.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	active := e.active
	e.active = make(map[string]*utterance)
	e.mu.Unlock()

	for id, utt := range active {
		utt.timer.Stop()
		utt.listener.OnError(id, playback.CodeInterrupted)
	}
	return nil
}

// Voices returns DefaultVoices.
func (e *Engine) Voices(ctx context.Context) ([]playback.Voice, error) {
	return append([]playback.Voice(nil), DefaultVoices...), nil
}
