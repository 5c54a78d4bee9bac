package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-reading-assistant/internal/observability/logging"
	"ai-reading-assistant/internal/observability/metrics"
)

// DefaultRestartDelay is the pause between an unrequested end of listening
// and the automatic restart.
const DefaultRestartDelay = 100 * time.Millisecond

// ErrPermissionDenied is returned by Start when the permission gate refuses.
var ErrPermissionDenied = errors.New("microphone permission denied")

// canceler is satisfied by *time.Timer.
type canceler interface {
	Stop() bool
}

type scheduler interface {
	AfterFunc(d time.Duration, f func()) canceler
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) canceler {
	return time.AfterFunc(d, f)
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver sets the observer for state changes and notices.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithRestartDelay overrides DefaultRestartDelay.
func WithRestartDelay(d time.Duration) Option {
	return func(m *Manager) { m.restartDelay = d }
}

// WithEngineConfig overrides DefaultEngineConfig.
func WithEngineConfig(cfg EngineConfig) Option {
	return func(m *Manager) { m.engineCfg = cfg }
}

// WithPermissionGate makes Start ask for microphone access first.
func WithPermissionGate(g PermissionGate) Option {
	return func(m *Manager) { m.gate = g }
}

// WithMetrics overrides metrics.DefaultMetrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func withScheduler(s scheduler) Option {
	return func(m *Manager) { m.sched = s }
}

// Manager owns one capture session and the engine behind it.
// Thread-safe; engine events may arrive on any goroutine.
//
// State transitions:
//
//	IDLE ──Start──→ LISTENING ──Fault(no-speech|other)──→ FAULTED_RETRYING
//	  ↑                 │                                      │
//	  │                 └──Ended (auto-restart on)──→ restart after delay
//	  │                                                        │
//	  └──── Stop / Fault(not-allowed|network|aborted) / Ended ─┘
//
// Rules:
//   - Stop sets stoppedIntentionally and clears shouldAutoRestart before the
//     engine is told to stop, so the resulting Ended never restarts.
//   - Ended always clears pendingPartial and stoppedIntentionally, and
//     schedules at most one restart.
//   - A scheduled restart re-checks both flags and the generation when it
//     fires. Start and Stop bump the generation.
//   - committedTranscript survives restarts and is only emptied by Clear.
type Manager struct {
	mu sync.Mutex

	engine       Engine
	engineCfg    EngineConfig
	configured   bool
	gate         PermissionGate
	observer     Observer
	sched        scheduler
	restartDelay time.Duration
	metrics      *metrics.Metrics
	logger       zerolog.Logger

	// ctx is the context of the last explicit Start; restarts reuse it.
	ctx            context.Context
	sessionId      string
	generation     uint64
	seq            uint64
	pendingRestart canceler

	state                State
	isActive             bool
	shouldAutoRestart    bool
	stoppedIntentionally bool
	committed            string
	pending              string
	lastFault            FaultKind
	notice               string
}

// NewManager creates a Manager in IDLE state. engine may be nil, in which
// case Start reports ErrEngineUnavailable.
func NewManager(engine Engine, opts ...Option) *Manager {
	m := &Manager{
		engine:       engine,
		engineCfg:    DefaultEngineConfig(),
		sched:        timerScheduler{},
		restartDelay: DefaultRestartDelay,
		metrics:      metrics.DefaultMetrics,
		ctx:          context.Background(),
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithSession("", m.engineName())
	return m
}

func (m *Manager) engineName() string {
	if m.engine == nil {
		return "none"
	}
	return m.engine.Name()
}

// Start begins a listening cycle. The committed transcript is kept.
func (m *Manager) Start(ctx context.Context) error {
	if m.engine == nil {
		m.metrics.RecordCaptureStart(ErrEngineUnavailable)
		m.dispatch(nil, &Notice{Class: ClassFatal, Message: MsgEngineUnavailable})
		return ErrEngineUnavailable
	}
	if m.IsActive() {
		m.metrics.RecordCaptureStart(ErrAlreadyListening)
		return ErrAlreadyListening
	}

	if m.gate != nil {
		ok, err := m.gate.Request(ctx)
		if err != nil || !ok {
			m.log().Warn().Err(err).Msg("Microphone permission refused")
			m.metrics.RecordCaptureStart(ErrPermissionDenied)
			m.mu.Lock()
			m.lastFault = FaultPermissionDenied
			m.notice = MsgPermissionDenied
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.dispatch(&snap, &Notice{
				SessionId: snap.SessionId,
				Class:     ClassFatal,
				Kind:      FaultPermissionDenied,
				Message:   MsgPermissionDenied,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
			}
			return ErrPermissionDenied
		}
	}

	m.mu.Lock()
	if m.isActive {
		m.mu.Unlock()
		m.metrics.RecordCaptureStart(ErrAlreadyListening)
		return ErrAlreadyListening
	}
	if !m.configured {
		if err := m.engine.Configure(m.engineCfg); err != nil {
			m.mu.Unlock()
			m.metrics.RecordCaptureStart(err)
			return fmt.Errorf("%w: configure: %v", ErrStartFailed, err)
		}
		m.configured = true
	}

	m.generation++
	m.cancelRestartLocked()
	if ctx == nil {
		ctx = context.Background()
	}
	m.ctx = ctx
	if m.sessionId == "" || !m.isActive {
		m.sessionId = uuid.New().String()
		m.logger = logging.WithSession(m.sessionId, m.engine.Name())
	}
	m.stoppedIntentionally = false
	m.shouldAutoRestart = true
	m.pending = ""
	m.setActiveLocked(true)
	m.state = StateListening
	m.mu.Unlock()

	err := m.engine.Start(ctx, m)
	m.metrics.RecordCaptureStart(err)
	if err != nil {
		m.mu.Lock()
		m.setActiveLocked(false)
		m.shouldAutoRestart = false
		m.state = StateIdle
		m.notice = MsgStartFailed
		snap := m.snapshotLocked()
		m.mu.Unlock()

		m.log().Error().Err(err).Msg("Engine refused to start")
		m.dispatch(&snap, &Notice{
			SessionId: snap.SessionId,
			Class:     ClassRecoverableNotified,
			Kind:      FaultNone,
			Message:   MsgStartFailed,
		})
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	m.log().Info().Msg("Capture started")
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.dispatch(&snap, nil)
	return nil
}

// Stop ends listening at the user's request. No-op when not active and no
// restart is pending; safe to call repeatedly.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.isActive && m.pendingRestart == nil {
		m.mu.Unlock()
		return
	}

	alreadyStopping := m.stoppedIntentionally
	m.stoppedIntentionally = true
	m.shouldAutoRestart = false
	m.generation++
	if m.cancelRestartLocked() {
		m.state = StateIdle
	}
	callEngine := m.isActive && !alreadyStopping
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if !alreadyStopping {
		m.metrics.RecordCaptureStop()
		m.log().Info().Msg("Capture stop requested")
	}
	m.dispatch(&snap, nil)

	if callEngine {
		if err := m.engine.Stop(); err != nil {
			m.log().Warn().Err(err).Msg("Engine stop returned error")
		}
	}
}

// OnEvent handles one engine event. It implements Sink.
func (m *Manager) OnEvent(ev Event) {
	switch ev.Type {
	case EventStarted:
		m.onStarted()
	case EventPartial:
		m.onPartial(ev.Text)
	case EventFinal:
		m.onFinal(ev.Text)
	case EventFault:
		m.onFault(ev.Fault)
	case EventEnded:
		m.onEnded()
	default:
		m.log().Warn().Int("type", int(ev.Type)).Msg("Ignoring unknown engine event")
	}
}

func (m *Manager) onStarted() {
	m.mu.Lock()
	m.notice = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.log().Debug().Msg("Engine listening")
	m.dispatch(&snap, nil)
}

func (m *Manager) onPartial(text string) {
	m.mu.Lock()
	if !m.isActive {
		m.mu.Unlock()
		m.log().Debug().Msg("Dropping partial received while inactive")
		return
	}
	m.pending = text
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.RecordPartialTranscript()
	m.dispatch(&snap, nil)
}

func (m *Manager) onFinal(text string) {
	m.mu.Lock()
	if !m.isActive {
		m.mu.Unlock()
		m.log().Debug().Msg("Dropping final received while inactive")
		return
	}
	m.committed += text + " "
	m.pending = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.RecordFinalTranscript()
	m.log().Debug().Int("length", len(text)).Msg("Final transcript committed")
	m.dispatch(&snap, nil)
}

func (m *Manager) onFault(f Fault) {
	m.mu.Lock()
	c := classify(f.Kind, m.stoppedIntentionally)
	m.lastFault = f.Kind

	if c.retry {
		if !m.stoppedIntentionally {
			m.shouldAutoRestart = true
		}
		if m.isActive {
			m.state = StateFaultedRetrying
		}
	} else {
		m.setActiveLocked(false)
		m.shouldAutoRestart = false
		m.state = StateIdle
	}
	if c.message != "" {
		m.notice = c.message
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.RecordCaptureFault(f.Kind.String(), c.class.String())
	m.log().Warn().
		Str("code", f.Code).
		Str("kind", f.Kind.String()).
		Str("class", c.class.String()).
		Msg("Engine fault")

	var n *Notice
	if c.class != ClassRecoverableSilent {
		n = &Notice{SessionId: snap.SessionId, Class: c.class, Kind: f.Kind, Message: c.message}
	}
	m.dispatch(&snap, n)
}

func (m *Manager) onEnded() {
	m.mu.Lock()
	m.pending = ""
	m.setActiveLocked(false)
	m.state = StateIdle

	scheduled := false
	if m.shouldAutoRestart && !m.stoppedIntentionally && m.pendingRestart == nil {
		gen := m.generation
		m.pendingRestart = m.sched.AfterFunc(m.restartDelay, func() { m.restart(gen) })
		m.state = StateFaultedRetrying
		scheduled = true
	}
	m.stoppedIntentionally = false
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.log().Debug().Bool("restartScheduled", scheduled).Msg("Engine ended")
	m.dispatch(&snap, nil)
}

// restart is the delayed auto-restart scheduled by onEnded.
func (m *Manager) restart(gen uint64) {
	m.mu.Lock()
	m.pendingRestart = nil
	if gen != m.generation || !m.shouldAutoRestart || m.stoppedIntentionally || m.isActive {
		if m.state == StateFaultedRetrying && !m.isActive {
			m.state = StateIdle
		}
		m.mu.Unlock()
		m.metrics.RecordCaptureRestart("skipped")
		m.log().Debug().Msg("Restart skipped")
		return
	}
	m.setActiveLocked(true)
	m.state = StateListening
	ctx := m.ctx
	m.mu.Unlock()

	if err := m.engine.Start(ctx, m); err != nil {
		m.mu.Lock()
		m.setActiveLocked(false)
		m.shouldAutoRestart = false
		m.state = StateIdle
		snap := m.snapshotLocked()
		m.mu.Unlock()

		m.metrics.RecordCaptureRestart("failed")
		m.log().Error().Err(err).Msg("Automatic restart failed, auto-restart disabled")
		m.dispatch(&snap, nil)
		return
	}

	m.metrics.RecordCaptureRestart("ok")
	m.log().Debug().Msg("Capture restarted")
	m.mu.Lock()
	// Stop may have run while the engine was starting.
	stopNow := m.stoppedIntentionally
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.dispatch(&snap, nil)

	if stopNow {
		if err := m.engine.Stop(); err != nil {
			m.log().Warn().Err(err).Msg("Engine stop returned error")
		}
	}
}

// SnapshotTranscript returns the committed transcript.
func (m *Manager) SnapshotTranscript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

// Clear empties the transcript and forgets the last fault. Listening, if
// any, is unaffected.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.committed = ""
	m.pending = ""
	m.lastFault = FaultNone
	m.notice = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.dispatch(&snap, nil)
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsActive returns true while the engine is listening.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isActive
}

// Snapshot returns a copy of the session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	m.seq++
	return Snapshot{
		Seq:                  m.seq,
		SessionId:            m.sessionId,
		State:                m.state,
		IsActive:             m.isActive,
		ShouldAutoRestart:    m.shouldAutoRestart,
		StoppedIntentionally: m.stoppedIntentionally,
		RestartPending:       m.pendingRestart != nil,
		CommittedTranscript:  m.committed,
		PendingPartial:       m.pending,
		LastFault:            m.lastFault,
		Notice:               m.notice,
	}
}

func (m *Manager) setActiveLocked(active bool) {
	if m.isActive == active {
		return
	}
	m.isActive = active
	m.metrics.RecordCaptureActive(active)
}

// cancelRestartLocked drops a pending restart. Returns true if one was pending.
func (m *Manager) cancelRestartLocked() bool {
	if m.pendingRestart == nil {
		return false
	}
	m.pendingRestart.Stop()
	m.pendingRestart = nil
	return true
}

func (m *Manager) dispatch(snap *Snapshot, n *Notice) {
	if m.observer == nil {
		return
	}
	if snap != nil {
		m.observer.OnStateChange(*snap)
	}
	if n != nil {
		m.observer.OnNotice(*n)
	}
}

// log returns the session logger. The logger is replaced on every new
// session, so it is read under the lock.
func (m *Manager) log() *zerolog.Logger {
	m.mu.Lock()
	l := m.logger
	m.mu.Unlock()
	return &l
}
