package lifecycle

import (
	"errors"
	"sync"
	"testing"
)

// fakeRegistry hands out targets in registration order.
type fakeRegistry struct {
	mu      sync.Mutex
	targets []Target
}

func (r *fakeRegistry) add(name string, obj any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, Target{Name: name, Object: obj})
}

func (r *fakeRegistry) LookupObjectsForLifecycle(match Matcher) ([]Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Target
	for _, t := range r.targets {
		if match(t.Object) {
			out = append(out, t)
		}
	}
	return out, nil
}

// journal is a shared call log for components.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) record(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, s)
}

func (j *journal) Calls() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string{}, j.calls...)
}

// component implements every lifecycle capability and records the calls.
type component struct {
	name string
	log  *journal
	fail map[string]bool
}

func newComponent(name string, log *journal, failOn ...string) *component {
	c := &component{name: name, log: log, fail: make(map[string]bool)}
	for _, p := range failOn {
		c.fail[p] = true
	}
	return c
}

func (c *component) call(phase string) error {
	c.log.record(c.name + ":" + phase)
	if c.fail[phase] {
		return errors.New(c.name + " failed " + phase)
	}
	return nil
}

func (c *component) Initialise() error { return c.call(Initialise) }
func (c *component) Start() error      { return c.call(Start) }
func (c *component) Stop() error       { return c.call(Stop) }
func (c *component) Dispose() error    { return c.call(Dispose) }

// startOnly only takes part in start.
type startOnly struct {
	name string
	log  *journal
}

func (s *startOnly) Start() error {
	s.log.record(s.name + ":" + Start)
	return nil
}

// notificationRecorder collects notifications.
type notificationRecorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (n *notificationRecorder) OnNotification(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, note)
}

func (n *notificationRecorder) Actions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, note := range n.seen {
		out = append(out, string(note.Action))
	}
	return out
}

func TestRegistryManager_StartupHaltsOnFirstFailure(t *testing.T) {
	log := &journal{}
	reg := &fakeRegistry{}
	reg.add("a", newComponent("a", log))
	reg.add("b", newComponent("b", log, Initialise))
	reg.add("c", newComponent("c", log))

	m := NewRegistryManager("app", reg)
	err := m.FireLifecycle(Initialise)

	var perr *PhaseError
	if !errors.As(err, &perr) {
		t.Fatalf("FireLifecycle(initialise) error = %v, want *PhaseError", err)
	}
	if perr.Target != "b" || perr.Phase != Initialise {
		t.Errorf("PhaseError = %+v", perr)
	}
	want := []string{"a:initialise", "b:initialise"}
	if got := log.Calls(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if m.CurrentPhase() != NotInLifecycle {
		t.Errorf("current = %q, want %q", m.CurrentPhase(), NotInLifecycle)
	}
	if m.ExecutingPhase() != "" {
		t.Errorf("executing = %q, want empty", m.ExecutingPhase())
	}
}

func TestRegistryManager_TeardownContinuesPastFailures(t *testing.T) {
	log := &journal{}
	reg := &fakeRegistry{}
	reg.add("a", newComponent("a", log))
	reg.add("b", newComponent("b", log, Stop))
	reg.add("c", newComponent("c", log))

	m := NewRegistryManager("app", reg)
	if err := m.FireLifecycle(Start); err != nil {
		t.Fatal(err)
	}
	if err := m.FireLifecycle(Stop); err != nil {
		t.Fatalf("FireLifecycle(stop) error = %v, want nil", err)
	}

	calls := log.Calls()
	stops := calls[len(calls)-3:]
	want := []string{"c:stop", "b:stop", "a:stop"}
	if !equalStrings(stops, want) {
		t.Errorf("stop calls = %v, want %v", stops, want)
	}
	if m.CurrentPhase() != Stop {
		t.Errorf("current = %q, want %q", m.CurrentPhase(), Stop)
	}
}

func TestRegistryManager_StartupOrder(t *testing.T) {
	log := &journal{}
	reg := &fakeRegistry{}
	reg.add("a", newComponent("a", log))
	reg.add("b", newComponent("b", log))

	m := NewRegistryManager("app", reg)
	if err := m.FireLifecycle(Start); err != nil {
		t.Fatal(err)
	}

	want := []string{"a:initialise", "b:initialise", "a:start", "b:start"}
	if got := log.Calls(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRegistryManager_StopsStartedObjectsAfterFailedStart(t *testing.T) {
	log := &journal{}
	reg := &fakeRegistry{}
	reg.add("good", newComponent("good", log))
	reg.add("bad", newComponent("bad", log, Start))
	reg.add("late", newComponent("late", log))

	m := NewRegistryManager("app", reg)
	if err := m.FireLifecycle(Start); err == nil {
		t.Fatal("FireLifecycle(start) error = nil, want failure")
	}

	s := m.State()
	if s.Current != Initialise || !s.IsStartFailed() {
		t.Fatalf("state after failed start = %+v", s)
	}
	if err := m.CheckPhase(Stop); err != nil {
		t.Fatalf("CheckPhase(stop) after failed start = %v, want nil", err)
	}
	if err := m.FireLifecycle(Stop); err != nil {
		t.Fatalf("FireLifecycle(stop) error = %v", err)
	}
	if err := m.FireLifecycle(Dispose); err != nil {
		t.Fatalf("FireLifecycle(dispose) error = %v", err)
	}

	want := []string{
		"good:initialise", "bad:initialise", "late:initialise",
		"good:start", "bad:start",
		"late:stop", "good:stop",
		"late:dispose", "bad:dispose", "good:dispose",
	}
	if got := log.Calls(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestManager_StopIsOnlyDirectAfterFailedStart(t *testing.T) {
	cb := &recordingCallback{failOn: Start}
	m := NewManager("test", nil, WithCallback(cb))

	if err := m.FireLifecycle(Initialise); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckPhase(Stop); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("CheckPhase(stop) before start = %v, want ErrIllegalTransition", err)
	}
	if err := m.FireLifecycle(Start); err == nil {
		t.Fatal("FireLifecycle(start) error = nil, want failure")
	}
	if m.LastPhaseExecuted() != Start || !m.IsLastPhaseExecutionFailed() {
		t.Errorf("last = %q failed = %v", m.LastPhaseExecuted(), m.IsLastPhaseExecutionFailed())
	}

	cb.failOn = ""
	if err := m.FireLifecycle(Stop); err != nil {
		t.Fatalf("FireLifecycle(stop) error = %v", err)
	}
	if !equalStrings(cb.applied, []string{Initialise, Stop}) {
		t.Errorf("applied = %v, want start not replayed", cb.applied)
	}
	if m.IsLastPhaseExecutionFailed() {
		t.Error("IsLastPhaseExecutionFailed() after stop = true")
	}
	if m.CheckPhase(Stop) == nil {
		t.Error("CheckPhase(stop) after stop = nil, want error")
	}
}

func TestRegistryCallback_SuppressesDuplicates(t *testing.T) {
	log := &journal{}
	reg := &fakeRegistry{}
	reg.add("a", newComponent("a", log))
	reg.add("s", &startOnly{name: "s", log: log})

	start := NewStartPhase(WithObjects(
		NewObject("startables", MatchType[Startable]()),
		NewObject("components", MatchType[*component]()),
		NewObject("everything", MatchAny),
	))
	m := NewRegistryManager("app", reg,
		WithPhases(NewInitialisePhase(), start, NewStopPhase(), NewDisposePhase()),
	)
	m.current = Initialise

	if err := m.FireLifecycle(Start); err != nil {
		t.Fatal(err)
	}
	want := []string{"a:start", "s:start"}
	if got := log.Calls(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

// spawner registers a child the first time it is initialised.
type spawner struct {
	log *journal
	reg *fakeRegistry
}

func (s *spawner) Initialise() error {
	s.log.record("parent:initialise")
	s.reg.add("child", newComponent("child", s.log))
	return nil
}

func TestRegistryCallback_PicksUpObjectsRegisteredDuringPass(t *testing.T) {
	log := &journal{}
	reg := &fakeRegistry{}
	reg.add("parent", &spawner{log: log, reg: reg})

	m := NewRegistryManager("app", reg)
	if err := m.FireLifecycle(Initialise); err != nil {
		t.Fatal(err)
	}

	want := []string{"parent:initialise", "child:initialise"}
	if got := log.Calls(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRegistryCallback_IgnoredObjects(t *testing.T) {
	log := &journal{}
	reg := &fakeRegistry{}
	reg.add("a", newComponent("a", log))
	reg.add("s", &startOnly{name: "s", log: log})

	m := NewRegistryManager("app", reg, WithPhases(
		NewInitialisePhase(),
		NewStartPhase(WithIgnored(MatchType[*startOnly]())),
		NewStopPhase(),
		NewDisposePhase(),
	))
	if err := m.FireLifecycle(Start); err != nil {
		t.Fatal(err)
	}
	for _, c := range log.Calls() {
		if c == "s:start" {
			t.Errorf("ignored object was started: %v", log.Calls())
		}
	}
}

func TestRegistryManager_Notifications(t *testing.T) {
	reg := &fakeRegistry{}
	reg.add("a", newComponent("a", &journal{}))
	rec := &notificationRecorder{}

	start := NewStartPhase(WithObjects(
		NewObject("components", MatchAny, WithNotifications("components starting", "components started")),
	))
	m := NewRegistryManager("app", reg, WithListener(rec),
		WithPhases(NewInitialisePhase(), start, NewStopPhase(), NewDisposePhase()),
	)
	if err := m.FireLifecycle(Start); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"initialising", "initialised",
		"starting", "components starting", "components started", "started",
	}
	if got := rec.Actions(); !equalStrings(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
	if rec.seen[0].Manager != "app" {
		t.Errorf("notification manager = %q, want app", rec.seen[0].Manager)
	}
}

func TestRegistryManager_ApplyCompletedPhases(t *testing.T) {
	tests := []struct {
		name   string
		phases []string
		want   []string
	}{
		{"not in lifecycle", nil, nil},
		{"initialised", []string{Initialise}, []string{"late:initialise"}},
		{"started", []string{Initialise, Start}, []string{"late:initialise", "late:start"}},
		{"stopped", []string{Initialise, Start, Stop}, []string{"late:initialise"}},
		{"disposed", []string{Initialise, Start, Stop, Dispose}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRegistryManager("app", &fakeRegistry{})
			for _, p := range tt.phases {
				if err := m.FireLifecycle(p); err != nil {
					t.Fatal(err)
				}
			}

			log := &journal{}
			if err := m.ApplyCompletedPhases("late", newComponent("late", log)); err != nil {
				t.Fatalf("ApplyCompletedPhases() error = %v", err)
			}
			if got := log.Calls(); !equalStrings(got, tt.want) {
				t.Errorf("calls = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPhaseErrorInterceptor(t *testing.T) {
	i := NewPhaseErrorInterceptor(Start, Stop, nil)
	obj := newComponent("x", &journal{})

	i.AfterPhase(Start, obj, errors.New("failed"))
	if !i.Failed(obj) {
		t.Fatal("Failed() = false after start failure")
	}
	if !i.BeforePhase(Dispose, obj) {
		t.Error("BeforePhase(dispose) vetoed an unrelated phase")
	}
	if i.BeforePhase(Stop, obj) {
		t.Error("BeforePhase(stop) = true for failed object")
	}

	i.OnPhaseCompleted(Start)
	if !i.Failed(obj) {
		t.Error("failure forgotten before intercepted phase completed")
	}
	i.OnPhaseCompleted(Stop)
	if i.Failed(obj) {
		t.Error("failure kept after intercepted phase completed")
	}
	if !i.BeforePhase(Stop, obj) {
		t.Error("BeforePhase(stop) = false after reset")
	}
}

func TestPhaseErrorInterceptor_UncomparableObjects(t *testing.T) {
	i := NewPhaseErrorInterceptor(Start, Stop, nil)
	obj := []string{"not", "comparable"}

	i.AfterPhase(Start, obj, errors.New("failed"))
	if !i.BeforePhase(Stop, obj) {
		t.Error("BeforePhase(stop) vetoed an untrackable object")
	}
}
