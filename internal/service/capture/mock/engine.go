// Package mock provides a simulated capture engine for running without a
// microphone or cloud credentials. It emits progressive partial transcripts,
// one final per utterance, and ends the stream after a few utterances the
// way a real engine times out.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-reading-assistant/internal/service/capture"
)

// ErrAlreadyRunning is returned by Start while a session is running.
var ErrAlreadyRunning = errors.New("mock recognition already started")

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials []string // Progressive partial transcripts
	Final    string   // Final transcript text
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials: []string{"Photosynthesis", "Photosynthesis converts", "Photosynthesis converts light"},
		Final:    "Photosynthesis converts light energy into chemical energy.",
	},
	{
		Partials: []string{"Plants", "Plants store", "Plants store that energy"},
		Final:    "Plants store that energy as glucose in their cells.",
	},
	{
		Partials: []string{"Chlorophyll", "Chlorophyll absorbs"},
		Final:    "Chlorophyll absorbs mostly red and blue light.",
	},
	{
		Partials: []string{"Oxygen is", "Oxygen is released"},
		Final:    "Oxygen is released as a byproduct of the process.",
	},
}

// Config controls the simulation pace.
type Config struct {
	// Interval between successive events.
	Interval time.Duration
	// UtterancesPerSession before the engine ends on its own. Zero means never.
	UtterancesPerSession int
	Utterances           []SimulatedUtterance
}

// DefaultConfig returns a realistic pace.
func DefaultConfig() Config {
	return Config{
		Interval:             150 * time.Millisecond,
		UtterancesPerSession: 2,
		Utterances:           DefaultUtterances,
	}
}

// Engine implements capture.Engine with simulated speech.
type Engine struct {
	cfg capture.EngineConfig
	sim Config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	next    int      // next utterance, cycles through sim.Utterances
	faults  []string // injected fault codes, emitted before the next event
	done    chan struct{}
}

// New creates a new mock capture engine.
func New(sim Config) *Engine {
	if len(sim.Utterances) == 0 {
		sim.Utterances = DefaultUtterances
	}
	return &Engine{sim: sim}
}

func (e *Engine) Name() string { return "mock" }

// Configure records the session settings. Partials are skipped when
// interim results are off.
func (e *Engine) Configure(cfg capture.EngineConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	return nil
}

// Start begins a simulated session.
func (e *Engine) Start(ctx context.Context, sink capture.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(runCtx, sink, e.done)
	return nil
}

// Stop ends the session. The session reports "aborted" and then ends.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.cancel != nil {
		e.cancel()
	}
	return nil
}

// InjectFault queues an engine error code. The running session emits it at
// its next step; fatal codes end the session.
func (e *Engine) InjectFault(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults = append(e.faults, code)
}

// Wait blocks until the current session, if any, has ended.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (e *Engine) run(ctx context.Context, sink capture.Sink, done chan struct{}) {
	defer close(done)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
		sink.OnEvent(capture.Ended())
	}()

	sink.OnEvent(capture.Started())

	for n := 0; e.sim.UtterancesPerSession == 0 || n < e.sim.UtterancesPerSession; n++ {
		utt := e.nextUtterance()

		if e.interimResults() {
			for _, partial := range utt.Partials {
				if !e.step(ctx, sink) {
					return
				}
				sink.OnEvent(capture.Partial(partial))
			}
		}
		if !e.step(ctx, sink) {
			return
		}
		sink.OnEvent(capture.Final(utt.Final))
	}
}

// step waits one interval and emits any injected fault. It returns false
// when the session must end.
func (e *Engine) step(ctx context.Context, sink capture.Sink) bool {
	select {
	case <-ctx.Done():
		sink.OnEvent(capture.FaultEvent(capture.CodeAborted))
		return false
	case <-time.After(e.sim.Interval):
	}

	e.mu.Lock()
	faults := e.faults
	e.faults = nil
	e.mu.Unlock()

	for _, code := range faults {
		sink.OnEvent(capture.FaultEvent(code))
		switch capture.ParseFaultKind(code) {
		case capture.FaultPermissionDenied, capture.FaultNetwork, capture.FaultAborted:
			return false
		}
	}
	return true
}

func (e *Engine) nextUtterance() SimulatedUtterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	utt := e.sim.Utterances[e.next%len(e.sim.Utterances)]
	e.next++
	return utt
}

func (e *Engine) interimResults() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.InterimResults
}
