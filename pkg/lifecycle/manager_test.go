package lifecycle

import (
	"errors"
	"sync"
	"testing"
)

// mockEmitter records phase change events.
type mockEmitter struct {
	mu     sync.Mutex
	events []phaseChangeEvent
}

type phaseChangeEvent struct {
	previous string
	current  string
}

func (m *mockEmitter) OnPhaseChange(previous, current, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, phaseChangeEvent{previous, current})
}

func (m *mockEmitter) Events() []phaseChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]phaseChangeEvent{}, m.events...)
}

// recordingCallback records every phase it is asked to apply.
type recordingCallback struct {
	applied []string
	failOn  string
}

func (r *recordingCallback) OnTransition(phase string, object any) error {
	if phase == r.failOn {
		return errors.New("boom")
	}
	r.applied = append(r.applied, phase)
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewManager(t *testing.T) {
	m := NewManager("test", nil)

	if m.CurrentPhase() != NotInLifecycle {
		t.Errorf("initial phase = %q, want %q", m.CurrentPhase(), NotInLifecycle)
	}
	if m.ExecutingPhase() != "" {
		t.Errorf("executing phase = %q, want empty", m.ExecutingPhase())
	}
	want := []string{NotInLifecycle, Initialise, Start, Stop, Dispose}
	if got := m.PhaseNames(); !equalStrings(got, want) {
		t.Errorf("PhaseNames() = %v, want %v", got, want)
	}
}

func TestManager_CheckPhase(t *testing.T) {
	tests := []struct {
		name    string
		current string
		phase   string
		wantErr error
	}{
		{"initialise from not in lifecycle", NotInLifecycle, Initialise, nil},
		{"start from initialise", Initialise, Start, nil},
		{"stop from start", Start, Stop, nil},
		{"start from stop", Stop, Start, nil},
		{"dispose from stop", Stop, Dispose, nil},
		{"same phase", Start, Start, ErrAlreadyInPhase},
		{"unknown phase", Start, "pause", ErrUnknownPhase},
		{"initialise from start", Start, Initialise, ErrIllegalTransition},
		{"stop from initialise", Initialise, Stop, ErrIllegalTransition},
		{"start from not in lifecycle", NotInLifecycle, Start, ErrIllegalTransition},
		{"initialise after dispose", Dispose, Initialise, ErrIllegalTransition},
		{"start after dispose", Dispose, Start, ErrIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test", nil)
			m.current = tt.current

			err := m.CheckPhase(tt.phase)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckPhase(%q) error = %v, want %v", tt.phase, err, tt.wantErr)
			}
			if tt.wantErr != nil {
				var terr *TransitionError
				if !errors.As(err, &terr) {
					t.Fatalf("error %T is not *TransitionError", err)
				}
				if terr.Current != tt.current || terr.Requested != tt.phase {
					t.Errorf("TransitionError = %+v", terr)
				}
			}
		})
	}
}

func TestManager_DisposeFromAnyPhase(t *testing.T) {
	for _, current := range []string{NotInLifecycle, Initialise, Start, Stop} {
		t.Run(current, func(t *testing.T) {
			m := NewManager("test", nil)
			m.current = current

			if err := m.CheckPhase(Dispose); err != nil {
				t.Errorf("CheckPhase(dispose) from %q = %v, want nil", current, err)
			}
			if !m.IsValidTransition(Dispose) {
				t.Errorf("IsValidTransition(dispose) from %q = false", current)
			}
		})
	}
}

func TestManager_FireLifecycle_Scenario(t *testing.T) {
	cb := &recordingCallback{}
	emitter := &mockEmitter{}
	m := NewManager("test", nil, WithCallback(cb), WithEventEmitter(emitter))

	for _, phase := range []string{Initialise, Start, Stop, Start} {
		if err := m.FireLifecycle(phase); err != nil {
			t.Fatalf("FireLifecycle(%q) error = %v", phase, err)
		}
	}

	err := m.FireLifecycle(Initialise)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("FireLifecycle(initialise) after start error = %v, want ErrIllegalTransition", err)
	}

	want := []string{Initialise, Start, Stop, Start}
	if !equalStrings(cb.applied, want) {
		t.Errorf("applied = %v, want %v", cb.applied, want)
	}

	events := emitter.Events()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].previous != NotInLifecycle || events[0].current != Initialise {
		t.Errorf("first event = %+v", events[0])
	}
	if events[3].previous != Stop || events[3].current != Start {
		t.Errorf("last event = %+v", events[3])
	}
}

func TestManager_FireLifecycle_WalksForward(t *testing.T) {
	phases := []*Phase{
		NewPhase("p1", nil),
		NewPhase("p2", nil),
		NewPhase("p3", nil),
		NewPhase("p4", nil),
		NewPhase("p5", nil),
	}

	tests := []struct {
		name   string
		from   string
		target string
		want   []string
	}{
		{"from start of lifecycle", NotInLifecycle, "p3", []string{"p1", "p2", "p3"}},
		{"from middle", "p2", "p5", []string{"p3", "p4", "p5"}},
		{"adjacent", "p4", "p5", []string{"p5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := &recordingCallback{}
			m := NewManager("test", nil, WithCallback(cb), WithPhases(phases...), WithPairs())
			m.current = tt.from

			if err := m.FireLifecycle(tt.target); err != nil {
				t.Fatalf("FireLifecycle(%q) error = %v", tt.target, err)
			}
			if !equalStrings(cb.applied, tt.want) {
				t.Errorf("applied = %v, want %v", cb.applied, tt.want)
			}
			if m.CurrentPhase() != tt.target {
				t.Errorf("current = %q, want %q", m.CurrentPhase(), tt.target)
			}
		})
	}
}

func TestManager_FireLifecycle_BackwardTargetIsRejectedUnlessPaired(t *testing.T) {
	cb := &recordingCallback{}
	m := NewManager("test", nil, WithCallback(cb))
	m.current = Stop

	if err := m.FireLifecycle(Initialise); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("FireLifecycle(initialise) from stop error = %v", err)
	}
	if err := m.FireLifecycle(Start); err != nil {
		t.Fatalf("FireLifecycle(start) from stop error = %v", err)
	}
	if !equalStrings(cb.applied, []string{Start}) {
		t.Errorf("applied = %v, want only start", cb.applied)
	}
}

func TestManager_FireLifecycle_StartStopsWalkOnFailure(t *testing.T) {
	cb := &recordingCallback{failOn: Start}
	m := NewManager("test", nil, WithCallback(cb))

	err := m.FireLifecycle(Start)
	if err == nil {
		t.Fatal("FireLifecycle(start) error = nil, want failure")
	}
	if m.CurrentPhase() != Initialise {
		t.Errorf("current = %q, want %q", m.CurrentPhase(), Initialise)
	}
	if m.ExecutingPhase() != "" {
		t.Errorf("executing = %q after failure, want empty", m.ExecutingPhase())
	}
}

func TestManager_FireLifecycle_NotReentrant(t *testing.T) {
	var m *Manager
	var nestedErr error
	var executingDuring string
	cb := CallbackFunc(func(phase string, object any) error {
		executingDuring = m.ExecutingPhase()
		nestedErr = m.FireLifecycle(Start)
		return nil
	})
	m = NewManager("test", nil, WithCallback(cb))

	if err := m.FireLifecycle(Initialise); err != nil {
		t.Fatalf("FireLifecycle(initialise) error = %v", err)
	}
	if executingDuring != Initialise {
		t.Errorf("executing during callback = %q, want %q", executingDuring, Initialise)
	}
	if !errors.Is(nestedErr, ErrPhaseExecuting) {
		t.Errorf("nested FireLifecycle error = %v, want ErrPhaseExecuting", nestedErr)
	}
	if m.ExecutingPhase() != "" {
		t.Errorf("executing = %q after fire, want empty", m.ExecutingPhase())
	}
}

func TestManager_FireLifecycle_ClearsExecutingOnPanic(t *testing.T) {
	m := NewManager("test", nil, WithCallback(CallbackFunc(func(string, any) error {
		panic("callback panic")
	})))

	func() {
		defer func() { _ = recover() }()
		_ = m.FireLifecycle(Initialise)
	}()

	if m.ExecutingPhase() != "" {
		t.Errorf("executing = %q after panic, want empty", m.ExecutingPhase())
	}
	if m.CurrentPhase() != NotInLifecycle {
		t.Errorf("current = %q after panic, want %q", m.CurrentPhase(), NotInLifecycle)
	}
}

func TestManager_FireLifecycle_NoCallback(t *testing.T) {
	m := NewManager("test", nil)
	if err := m.FireLifecycle(Initialise); !errors.Is(err, ErrNoCallback) {
		t.Errorf("FireLifecycle error = %v, want ErrNoCallback", err)
	}
}

func TestManager_DisposeIsTerminalUntilReset(t *testing.T) {
	cb := &recordingCallback{}
	m := NewManager("test", nil, WithCallback(cb))

	if err := m.FireLifecycle(Start); err != nil {
		t.Fatal(err)
	}
	if err := m.FireLifecycle(Dispose); err != nil {
		t.Fatal(err)
	}
	if err := m.FireLifecycle(Initialise); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("FireLifecycle(initialise) after dispose error = %v", err)
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if m.CurrentPhase() != NotInLifecycle || len(m.CompletedPhases()) != 0 {
		t.Errorf("after Reset: current = %q completed = %v", m.CurrentPhase(), m.CompletedPhases())
	}
	if err := m.FireLifecycle(Initialise); err != nil {
		t.Errorf("FireLifecycle(initialise) after Reset error = %v", err)
	}
}

func TestManager_CompletedPhases(t *testing.T) {
	m := NewManager("test", nil, WithCallback(&recordingCallback{}))

	steps := []struct {
		phase string
		want  []string
	}{
		{Initialise, []string{Initialise}},
		{Start, []string{Initialise, Start}},
		{Stop, []string{Initialise, Stop}},
		{Start, []string{Initialise, Start}},
		{Dispose, []string{Start, Dispose}},
	}

	for _, s := range steps {
		if err := m.FireLifecycle(s.phase); err != nil {
			t.Fatalf("FireLifecycle(%q) error = %v", s.phase, err)
		}
		if got := m.CompletedPhases(); !equalStrings(got, s.want) {
			t.Errorf("after %q completed = %v, want %v", s.phase, got, s.want)
		}
	}
	if !m.HasTransitioned(Stop) {
		t.Error("HasTransitioned(stop) = false, want true")
	}
}

func TestManager_State(t *testing.T) {
	m := NewManager("test", nil, WithCallback(&recordingCallback{}))

	if err := m.FireLifecycle(Start); err != nil {
		t.Fatal(err)
	}
	s := m.State()
	if !s.IsInitialised() || !s.IsStarted() || s.IsStopped() || s.IsDisposed() {
		t.Errorf("started state = %+v", s)
	}

	if err := m.FireLifecycle(Stop); err != nil {
		t.Fatal(err)
	}
	s = m.State()
	if s.IsStarted() || !s.IsStopped() || !s.IsInitialised() {
		t.Errorf("stopped state = %+v", s)
	}
}

func TestManager_IsDirectTransition(t *testing.T) {
	m := NewManager("test", nil)
	m.current = Initialise

	if !m.IsDirectTransition(Start) {
		t.Error("IsDirectTransition(start) from initialise = false")
	}
	if !m.IsDirectTransition(Dispose) {
		t.Error("IsDirectTransition(dispose) from initialise = false")
	}
	if m.IsDirectTransition(Stop) {
		t.Error("IsDirectTransition(stop) from initialise = true")
	}
	if !m.IsValidTransition(Stop) {
		t.Error("IsValidTransition(stop) from initialise = false, want walk through start")
	}
}

func TestManager_RegisterPhase(t *testing.T) {
	m := NewManager("test", nil, WithCallback(&recordingCallback{}))

	if err := m.RegisterPhase(NewPhase("archive", nil)); err != nil {
		t.Fatalf("RegisterPhase() error = %v", err)
	}
	names := m.PhaseNames()
	if names[len(names)-1] != "archive" {
		t.Errorf("PhaseNames() = %v, want archive last", names)
	}

	if err := m.FireLifecycle(Initialise); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterPhase(NewPhase("late", nil)); err == nil {
		t.Error("RegisterPhase() after first transition error = nil")
	}
}

func TestNewPair(t *testing.T) {
	if _, err := NewPair(Start, Start); !errors.Is(err, ErrInvalidPair) {
		t.Errorf("NewPair(start, start) error = %v, want ErrInvalidPair", err)
	}
	p, err := NewPair(Start, Stop)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Joins(Stop, Start) || !p.Joins(Start, Stop) || p.Joins(Start, Dispose) {
		t.Errorf("Joins() mismatch for %+v", p)
	}
}

func TestSimpleManager(t *testing.T) {
	s := NewSimpleManager("component", nil)

	var calls []string
	record := func(name string) func() error {
		return func() error {
			calls = append(calls, name)
			return nil
		}
	}

	if err := s.FireStart(record("start")); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("FireStart before initialise error = %v, want ErrIllegalTransition", err)
	}
	if err := s.FireInitialise(record("init")); err != nil {
		t.Fatal(err)
	}
	if err := s.FireStop(record("stop")); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("FireStop before start error = %v, want ErrIllegalTransition", err)
	}
	if err := s.FireStart(record("start")); err != nil {
		t.Fatal(err)
	}
	if err := s.FireStop(record("stop")); err != nil {
		t.Fatal(err)
	}
	if err := s.FireDispose(record("dispose")); err != nil {
		t.Fatal(err)
	}

	want := []string{"init", "start", "stop", "dispose"}
	if !equalStrings(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}
