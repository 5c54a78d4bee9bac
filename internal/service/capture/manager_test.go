package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeEngine is a controllable Engine. Events are only emitted when a test
// asks for them, except on Stop when emitOnStop is set.
type fakeEngine struct {
	mu         sync.Mutex
	running    bool
	starts     int
	stops      int
	startErr   error
	configs    []EngineConfig
	sink       Sink
	emitOnStop bool
	onStop     func()
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Configure(cfg EngineConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = append(e.configs, cfg)
	return nil
}

func (e *fakeEngine) Start(ctx context.Context, sink Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	if e.running {
		return errors.New("already started")
	}
	e.running = true
	e.starts++
	e.sink = sink
	return nil
}

func (e *fakeEngine) Stop() error {
	e.mu.Lock()
	e.stops++
	emit := e.emitOnStop && e.running
	if emit {
		e.running = false
	}
	sink := e.sink
	onStop := e.onStop
	e.mu.Unlock()

	if onStop != nil {
		onStop()
	}
	if emit {
		sink.OnEvent(FaultEvent(CodeAborted))
		sink.OnEvent(Ended())
	}
	return nil
}

// end simulates the engine stopping on its own.
func (e *fakeEngine) end() {
	e.mu.Lock()
	e.running = false
	sink := e.sink
	e.mu.Unlock()
	sink.OnEvent(Ended())
}

func (e *fakeEngine) startCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func (e *fakeEngine) stopCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) canceler {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fire runs every timer that is neither stopped nor already fired.
func (s *fakeScheduler) fire() int {
	s.mu.Lock()
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type recordingObserver struct {
	mu        sync.Mutex
	snapshots []Snapshot
	notices   []Notice
}

func (o *recordingObserver) OnStateChange(s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots = append(o.snapshots, s)
}

func (o *recordingObserver) OnNotice(n Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, n)
}

func (o *recordingObserver) stateList() []Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Snapshot(nil), o.snapshots...)
}

func (o *recordingObserver) noticeList() []Notice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Notice(nil), o.notices...)
}

type staticGate struct {
	allow bool
	err   error
	calls int
}

func (g *staticGate) Request(ctx context.Context) (bool, error) {
	g.calls++
	return g.allow, g.err
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeEngine, *fakeScheduler, *recordingObserver) {
	t.Helper()
	eng := &fakeEngine{emitOnStop: true}
	sched := &fakeScheduler{}
	obs := &recordingObserver{}
	opts = append([]Option{withScheduler(sched), WithObserver(obs)}, opts...)
	return NewManager(eng, opts...), eng, sched, obs
}

func checkInvariants(t *testing.T, s Snapshot) {
	t.Helper()
	if s.StoppedIntentionally && s.ShouldAutoRestart {
		t.Errorf("stoppedIntentionally and shouldAutoRestart both set: %+v", s)
	}
	if s.State == StateIdle && s.IsActive {
		t.Errorf("IDLE while active: %+v", s)
	}
	if s.State == StateListening && !s.IsActive {
		t.Errorf("LISTENING while inactive: %+v", s)
	}
}

func TestManager_StartWithoutEngine(t *testing.T) {
	obs := &recordingObserver{}
	m := NewManager(nil, WithObserver(obs))

	err := m.Start(context.Background())
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if m.IsActive() {
		t.Error("expected inactive after failed start")
	}
	if m.State() != StateIdle {
		t.Errorf("expected IDLE, got %v", m.State())
	}
	if n := obs.noticeList(); len(n) != 1 || n[0].Class != ClassFatal {
		t.Errorf("expected one fatal notice, got %+v", n)
	}
}

func TestManager_StartConfiguresOnce(t *testing.T) {
	m, eng, _, _ := newTestManager(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s := m.Snapshot()
	if !s.IsActive || !s.ShouldAutoRestart || s.StoppedIntentionally {
		t.Errorf("unexpected flags after start: %+v", s)
	}
	if s.State != StateListening {
		t.Errorf("expected LISTENING, got %v", s.State)
	}
	if s.SessionId == "" {
		t.Error("expected a session id")
	}

	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	if len(eng.configs) != 1 {
		t.Fatalf("expected engine configured once, got %d", len(eng.configs))
	}
	cfg := eng.configs[0]
	if !cfg.Continuous || !cfg.InterimResults || cfg.Language != "en-US" {
		t.Errorf("unexpected engine config: %+v", cfg)
	}
}

func TestManager_StartRejectedByEngine(t *testing.T) {
	m, eng, _, obs := newTestManager(t)
	eng.startErr = errors.New("device busy")

	err := m.Start(context.Background())
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
	s := m.Snapshot()
	if s.IsActive || s.ShouldAutoRestart {
		t.Errorf("expected inactive without auto-restart, got %+v", s)
	}
	checkInvariants(t, s)

	notices := obs.noticeList()
	if len(notices) != 1 || notices[0].Message != MsgStartFailed {
		t.Errorf("expected start failure notice, got %+v", notices)
	}
}

func TestManager_StartWhileListening(t *testing.T) {
	m, eng, _, _ := newTestManager(t)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first := m.Snapshot()

	err := m.Start(context.Background())
	if !errors.Is(err, ErrAlreadyListening) || !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}
	s := m.Snapshot()
	if !s.IsActive || !s.ShouldAutoRestart || s.SessionId != first.SessionId {
		t.Errorf("expected running session untouched, got %+v", s)
	}
	if eng.startCount() != 1 {
		t.Errorf("expected one engine start, got %d", eng.startCount())
	}

	m.OnEvent(Final("still heard"))
	if got := m.SnapshotTranscript(); got != "still heard " {
		t.Errorf("expected results kept after repeated start, got %q", got)
	}

	m.Stop()
	if eng.stopCount() != 1 {
		t.Errorf("expected engine stopped, got %d stops", eng.stopCount())
	}
}

func TestManager_SnapshotsAreSequenced(t *testing.T) {
	m, _, _, obs := newTestManager(t)
	m.Start(context.Background())
	m.OnEvent(Started())
	m.OnEvent(Final("one"))
	m.OnEvent(Ended())
	m.Stop()

	var last uint64
	for i, s := range obs.stateList() {
		if s.Seq <= last {
			t.Fatalf("snapshot %d has seq %d after %d", i, s.Seq, last)
		}
		last = s.Seq
	}
	if last == 0 {
		t.Fatal("expected sequenced snapshots")
	}
	if s := m.Snapshot(); s.Seq <= last {
		t.Errorf("expected query snapshot after %d, got %d", last, s.Seq)
	}
}

func TestManager_TranscriptAccumulation(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	m.Start(context.Background())

	m.OnEvent(Started())
	m.OnEvent(Partial("hel"))
	if got := m.Snapshot().PendingPartial; got != "hel" {
		t.Errorf("expected pending %q, got %q", "hel", got)
	}
	m.OnEvent(Final("hello"))
	m.OnEvent(Partial("wor"))
	m.OnEvent(Final("world"))

	s := m.Snapshot()
	if s.CommittedTranscript != "hello world " {
		t.Errorf("expected %q, got %q", "hello world ", s.CommittedTranscript)
	}
	if s.PendingPartial != "" {
		t.Errorf("expected pending cleared, got %q", s.PendingPartial)
	}
	if got := m.SnapshotTranscript(); got != s.CommittedTranscript {
		t.Errorf("SnapshotTranscript = %q, want %q", got, s.CommittedTranscript)
	}
}

func TestManager_StopSetsFlagsBeforeEngineStop(t *testing.T) {
	m, eng, sched, obs := newTestManager(t)
	var atStop Snapshot
	eng.onStop = func() { atStop = m.Snapshot() }

	m.Start(context.Background())
	m.OnEvent(Final("keep me"))
	m.Stop()

	if !atStop.StoppedIntentionally || atStop.ShouldAutoRestart {
		t.Errorf("flags not set before engine stop: %+v", atStop)
	}

	s := m.Snapshot()
	checkInvariants(t, s)
	if s.IsActive || s.State != StateIdle {
		t.Errorf("expected IDLE and inactive, got %+v", s)
	}
	if s.StoppedIntentionally {
		t.Error("expected stoppedIntentionally reset by Ended")
	}
	if s.ShouldAutoRestart {
		t.Error("expected shouldAutoRestart false after stop")
	}
	if sched.count() != 0 {
		t.Errorf("expected no restart scheduled, got %d", sched.count())
	}
	if n := obs.noticeList(); len(n) != 0 {
		t.Errorf("expected aborted after stop to be silent, got %+v", n)
	}
	if s.CommittedTranscript != "keep me " {
		t.Errorf("expected transcript kept, got %q", s.CommittedTranscript)
	}
}

func TestManager_StopIdempotent(t *testing.T) {
	m, eng, _, _ := newTestManager(t)

	m.Stop()
	if eng.stopCount() != 0 {
		t.Errorf("expected no engine stop while idle, got %d", eng.stopCount())
	}

	eng.emitOnStop = false
	m.Start(context.Background())
	m.Stop()
	m.Stop()
	if eng.stopCount() != 1 {
		t.Errorf("expected engine stopped once, got %d", eng.stopCount())
	}
	checkInvariants(t, m.Snapshot())
}

func TestManager_NaturalEndRestartsOnce(t *testing.T) {
	m, eng, sched, _ := newTestManager(t)
	m.Start(context.Background())
	m.OnEvent(Partial("half"))
	m.OnEvent(Final("first"))

	eng.end()
	s := m.Snapshot()
	checkInvariants(t, s)
	if s.IsActive {
		t.Error("expected inactive during restart delay")
	}
	if s.PendingPartial != "" {
		t.Error("expected pending cleared on end")
	}
	if !s.RestartPending || s.State != StateFaultedRetrying {
		t.Errorf("expected pending restart, got %+v", s)
	}
	if sched.count() != 1 {
		t.Fatalf("expected 1 scheduled restart, got %d", sched.count())
	}
	if sched.timers[0].delay != DefaultRestartDelay {
		t.Errorf("expected delay %v, got %v", DefaultRestartDelay, sched.timers[0].delay)
	}

	if fired := sched.fire(); fired != 1 {
		t.Fatalf("expected 1 timer fired, got %d", fired)
	}
	if eng.startCount() != 2 {
		t.Errorf("expected 2 engine starts, got %d", eng.startCount())
	}
	s = m.Snapshot()
	if !s.IsActive || s.State != StateListening || s.RestartPending {
		t.Errorf("expected listening after restart, got %+v", s)
	}
	if s.CommittedTranscript != "first " {
		t.Errorf("expected transcript preserved across restart, got %q", s.CommittedTranscript)
	}
}

func TestManager_DuplicateEndedSchedulesOneRestart(t *testing.T) {
	m, eng, sched, _ := newTestManager(t)
	m.Start(context.Background())

	eng.end()
	m.OnEvent(Ended())

	if sched.count() != 1 {
		t.Errorf("expected exactly 1 scheduled restart, got %d", sched.count())
	}
}

func TestManager_FaultClassification(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		class         ErrorClass
		message       string
		state         State
		active        bool
		restartsAfter bool
	}{
		{"permission denied", CodeNotAllowed, ClassFatal, MsgPermissionDenied, StateIdle, false, false},
		{"network", CodeNetwork, ClassFatal, MsgNetwork, StateIdle, false, false},
		{"unexpected abort", CodeAborted, ClassRecoverableNotified, MsgAbortedUnexpected, StateIdle, false, false},
		{"no speech", CodeNoSpeech, ClassTransient, MsgNoSpeech, StateFaultedRetrying, true, true},
		{"other", "audio-capture", ClassTransient, MsgEngineError, StateFaultedRetrying, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, eng, sched, obs := newTestManager(t)
			m.Start(context.Background())

			m.OnEvent(FaultEvent(tt.code))

			s := m.Snapshot()
			checkInvariants(t, s)
			if s.State != tt.state {
				t.Errorf("expected state %v, got %v", tt.state, s.State)
			}
			if s.IsActive != tt.active {
				t.Errorf("expected active=%v, got %v", tt.active, s.IsActive)
			}
			if s.LastFault != ParseFaultKind(tt.code) {
				t.Errorf("expected last fault %v, got %v", ParseFaultKind(tt.code), s.LastFault)
			}

			notices := obs.noticeList()
			if len(notices) != 1 {
				t.Fatalf("expected 1 notice, got %d", len(notices))
			}
			if notices[0].Class != tt.class {
				t.Errorf("expected class %v, got %v", tt.class, notices[0].Class)
			}
			if notices[0].Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, notices[0].Message)
			}
			if strings.Contains(notices[0].Message, tt.code) {
				t.Errorf("notice leaks engine code %q: %q", tt.code, notices[0].Message)
			}

			eng.end()
			if got := sched.count() == 1; got != tt.restartsAfter {
				t.Errorf("expected restart scheduled=%v, got %d timers", tt.restartsAfter, sched.count())
			}
			checkInvariants(t, m.Snapshot())
		})
	}
}

func TestManager_StopDuringRestartWindow(t *testing.T) {
	m, eng, sched, _ := newTestManager(t)
	m.Start(context.Background())
	eng.end()

	m.Stop()
	s := m.Snapshot()
	checkInvariants(t, s)
	if s.RestartPending || s.State != StateIdle {
		t.Errorf("expected pending restart cancelled, got %+v", s)
	}
	if eng.stopCount() != 0 {
		t.Errorf("expected no engine stop for an ended engine, got %d", eng.stopCount())
	}

	// A timer that fires despite cancellation must still do nothing.
	sched.timers[0].f()
	if eng.startCount() != 1 {
		t.Errorf("expected no restart after stop, got %d starts", eng.startCount())
	}
	if m.IsActive() {
		t.Error("expected inactive")
	}
}

func TestManager_StaleRestartAfterNewStart(t *testing.T) {
	m, eng, sched, _ := newTestManager(t)
	m.Start(context.Background())
	eng.end()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sched.timers[0].stopped {
		t.Error("expected explicit start to cancel the pending restart")
	}

	sched.timers[0].f()
	if eng.startCount() != 2 {
		t.Errorf("expected stale restart skipped, got %d starts", eng.startCount())
	}
	if !m.IsActive() {
		t.Error("expected still active")
	}
}

func TestManager_RestartFailureDisablesAutoRestart(t *testing.T) {
	m, eng, sched, _ := newTestManager(t)
	m.Start(context.Background())
	eng.end()

	eng.startErr = errors.New("microphone unplugged")
	sched.fire()

	s := m.Snapshot()
	checkInvariants(t, s)
	if s.IsActive || s.ShouldAutoRestart || s.State != StateIdle {
		t.Errorf("expected idle without auto-restart, got %+v", s)
	}
	if sched.count() != 1 {
		t.Errorf("expected no further restarts, got %d timers", sched.count())
	}
}

func TestManager_ClearKeepsListening(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	m.Start(context.Background())
	m.OnEvent(Final("some words"))
	m.OnEvent(FaultEvent(CodeNoSpeech))

	m.Clear()

	s := m.Snapshot()
	if s.CommittedTranscript != "" || s.PendingPartial != "" {
		t.Errorf("expected empty transcript, got %+v", s)
	}
	if s.LastFault != FaultNone {
		t.Errorf("expected last fault cleared, got %v", s.LastFault)
	}
	if !s.IsActive {
		t.Error("expected Clear to leave listening untouched")
	}
}

func TestManager_StartedClearsNotice(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	m.Start(context.Background())
	m.OnEvent(FaultEvent(CodeNoSpeech))
	if m.Snapshot().Notice == "" {
		t.Fatal("expected notice after fault")
	}

	m.OnEvent(Started())
	if got := m.Snapshot().Notice; got != "" {
		t.Errorf("expected notice cleared, got %q", got)
	}
}

func TestManager_PermissionGate(t *testing.T) {
	tests := []struct {
		name string
		gate *staticGate
		want error
	}{
		{"granted", &staticGate{allow: true}, nil},
		{"refused", &staticGate{allow: false}, ErrPermissionDenied},
		{"error", &staticGate{err: errors.New("no device")}, ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, eng, _, obs := newTestManager(t, WithPermissionGate(tt.gate))

			err := m.Start(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.gate.calls != 1 {
				t.Errorf("expected gate consulted once, got %d", tt.gate.calls)
			}
			if tt.want == nil {
				if eng.startCount() != 1 {
					t.Errorf("expected engine started, got %d", eng.startCount())
				}
				return
			}
			if eng.startCount() != 0 {
				t.Errorf("expected engine untouched, got %d starts", eng.startCount())
			}
			notices := obs.noticeList()
			if len(notices) != 1 || notices[0].Class != ClassFatal {
				t.Errorf("expected one fatal notice, got %+v", notices)
			}
		})
	}
}

func TestManager_ResultsIgnoredWhileInactive(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	m.OnEvent(Partial("ghost"))
	m.OnEvent(Final("ghost"))

	s := m.Snapshot()
	if s.CommittedTranscript != "" || s.PendingPartial != "" {
		t.Errorf("expected results dropped while idle, got %+v", s)
	}
}

func TestManager_RestartDelayOption(t *testing.T) {
	m, eng, sched, _ := newTestManager(t, WithRestartDelay(250*time.Millisecond))
	m.Start(context.Background())
	eng.end()

	if sched.timers[0].delay != 250*time.Millisecond {
		t.Errorf("expected 250ms delay, got %v", sched.timers[0].delay)
	}
}

func TestManager_RealTimerRestart(t *testing.T) {
	eng := &fakeEngine{}
	m := NewManager(eng, WithRestartDelay(5*time.Millisecond))
	m.Start(context.Background())
	eng.end()

	deadline := time.Now().Add(2 * time.Second)
	for eng.startCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if eng.startCount() != 2 {
		t.Fatalf("expected automatic restart, got %d starts", eng.startCount())
	}
	m.Stop()
}
