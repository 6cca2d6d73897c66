package lifecycle

import (
	"fmt"
	"sync"

	"github.com/bft-labs/mulecore/pkg/log"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger      log.Logger
	emitter     EventEmitter
	callback    Callback
	phases      []*Phase
	pairs       []Pair
	interceptor Interceptor
	listener    Listener
}

// WithLogger sets the manager logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEventEmitter sets the emitter notified after every completed phase.
func WithEventEmitter(e EventEmitter) Option {
	return func(o *options) { o.emitter = e }
}

// WithCallback sets the callback FireLifecycle applies phases through.
func WithCallback(cb Callback) Option {
	return func(o *options) { o.callback = cb }
}

// WithPhases replaces the default phase set. Phases are indexed in the
// order given, after NotInLifecycle.
func WithPhases(phases ...*Phase) Option {
	return func(o *options) { o.phases = phases }
}

// WithPairs replaces the default phase pairs.
func WithPairs(pairs ...Pair) Option {
	return func(o *options) { o.pairs = pairs }
}

// WithInterceptor sets the interceptor consulted per object by registry managers.
func WithInterceptor(i Interceptor) Option {
	return func(o *options) { o.interceptor = i }
}

// WithListener sets the notification listener used by registry managers.
func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// Manager is the phase state machine for one managed container or
// component. Only one phase executes at a time; a request made while a
// phase is executing is rejected, not queued.
type Manager struct {
	mu       sync.Mutex
	id       string
	object   any
	logger   log.Logger
	emitter  EventEmitter
	callback Callback

	phases map[string]*Phase
	index  []string
	pairs  []Pair

	current     string
	executing   string
	completed   []string
	transitions map[string]struct{}

	// lastExecuted is the last phase invoked, lastFailed whether it failed.
	lastExecuted string
	lastFailed   bool
}

// NewManager creates a manager for object, identified by id in logs and
// errors. It starts in NotInLifecycle.
func NewManager(id string, object any, opts ...Option) *Manager {
	o := options{
		phases: DefaultPhases(),
		pairs:  DefaultPairs(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		id:          id,
		object:      object,
		logger:      log.OrNoop(o.logger).With(log.String("manager", id)),
		emitter:     o.emitter,
		callback:    o.callback,
		phases:      make(map[string]*Phase),
		pairs:       append([]Pair(nil), o.pairs...),
		current:     NotInLifecycle,
		transitions: make(map[string]struct{}),
	}
	m.registerLocked(newNotInLifecyclePhase())
	for _, p := range o.phases {
		m.registerLocked(p)
	}
	return m
}

// ID returns the manager identifier.
func (m *Manager) ID() string { return m.id }

// RegisterPhase appends a phase to the index. Phases may only be
// registered before the first transition.
func (m *Manager) RegisterPhase(p *Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.executing != "" {
		return ErrPhaseExecuting
	}
	if m.current != NotInLifecycle {
		return fmt.Errorf("lifecycle manager %q: register phase %q: %w", m.id, p.name, ErrIllegalTransition)
	}
	m.registerLocked(p)
	return nil
}

func (m *Manager) registerLocked(p *Phase) {
	if _, exists := m.phases[p.name]; !exists {
		m.index = append(m.index, p.name)
	}
	m.phases[p.name] = p
}

// Phase returns the registered phase called name.
func (m *Manager) Phase(name string) (*Phase, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.phases[name]
	return p, ok
}

// PhaseNames returns registered phase names in index order.
func (m *Manager) PhaseNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.index...)
}

// CurrentPhase returns the last successfully completed phase.
func (m *Manager) CurrentPhase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ExecutingPhase returns the phase in flight, or "" when idle.
func (m *Manager) ExecutingPhase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executing
}

// CompletedPhases returns the completed phases in completion order. Completing
// one end of a pair removes the other, so after stop the list no longer
// holds start.
func (m *Manager) CompletedPhases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.completed...)
}

// LastPhaseExecuted returns the last phase invoked, whether or not it
// completed.
func (m *Manager) LastPhaseExecuted() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastExecuted
}

// IsLastPhaseExecutionFailed reports whether the last invoked phase failed.
func (m *Manager) IsLastPhaseExecutionFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFailed
}

// IsPhaseComplete reports whether name is in the completed set.
func (m *Manager) IsPhaseComplete(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isCompleteLocked(name)
}

// HasTransitioned reports whether name has ever completed since construction
// or the last Reset.
func (m *Manager) HasTransitioned(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.transitions[name]
	return ok
}

func (m *Manager) isCompleteLocked(name string) bool {
	for _, c := range m.completed {
		if c == name {
			return true
		}
	}
	return false
}

// CheckPhase reports whether name may be fired as a single transition from
// the current phase.
func (m *Manager) CheckPhase(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPhaseLocked(name); err != nil {
		return m.transitionError(name, err)
	}
	return nil
}

// IsDirectTransition reports whether name is the next phase in the index or
// the other end of a pair with the current phase.
func (m *Manager) IsDirectTransition(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isNextLocked(name) || m.isPairedLocked(name)
}

// IsValidTransition reports whether FireLifecycle(name) would be accepted.
func (m *Manager) IsValidTransition(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.planLocked(name, true)
	return err == nil
}

func (m *Manager) checkPhaseLocked(name string) error {
	if m.executing != "" {
		return ErrPhaseExecuting
	}
	if name == m.current {
		return ErrAlreadyInPhase
	}
	p, ok := m.phases[name]
	if !ok || name == NotInLifecycle {
		return ErrUnknownPhase
	}
	if name == Dispose {
		return nil
	}
	if m.current == Dispose {
		return ErrIllegalTransition
	}
	if m.isPairedLocked(name) || m.undoesFailedLocked(name) {
		return nil
	}
	if m.isNextLocked(name) && p.IsPhaseSupported(m.current) {
		return nil
	}
	return ErrIllegalTransition
}

func (m *Manager) isNextLocked(name string) bool {
	i := m.indexOfLocked(m.current)
	return i >= 0 && i+1 < len(m.index) && m.index[i+1] == name
}

func (m *Manager) isPairedLocked(name string) bool {
	for _, p := range m.pairs {
		if p.Joins(m.current, name) {
			return true
		}
	}
	return false
}

// undoesFailedLocked reports whether name closes a pair whose begin phase
// was the last one invoked and failed part way. After a failed start, stop
// is a single step so that objects started before the failure are stopped.
func (m *Manager) undoesFailedLocked(name string) bool {
	if !m.lastFailed {
		return false
	}
	for _, p := range m.pairs {
		if p.begin == m.lastExecuted && p.end == name {
			return true
		}
	}
	return false
}

func (m *Manager) indexOfLocked(name string) int {
	for i, n := range m.index {
		if n == name {
			return i
		}
	}
	return -1
}

// planLocked returns the phases to invoke to reach name. A forward target
// beyond the next phase is reached by walking the index when walk is set;
// every other legal target is a single step.
func (m *Manager) planLocked(name string, walk bool) ([]string, error) {
	err := m.checkPhaseLocked(name)
	if err == nil {
		return []string{name}, nil
	}
	if !walk || err != ErrIllegalTransition || m.current == Dispose {
		return nil, err
	}

	from, to := m.indexOfLocked(m.current), m.indexOfLocked(name)
	if to <= from {
		return nil, ErrIllegalTransition
	}
	steps := make([]string, 0, to-from)
	prev := m.current
	for _, step := range m.index[from+1 : to+1] {
		if !m.phases[step].IsPhaseSupported(prev) {
			return nil, ErrIllegalTransition
		}
		steps = append(steps, step)
		prev = step
	}
	return steps, nil
}

func (m *Manager) transitionError(name string, err error) error {
	return &TransitionError{Manager: m.id, Current: m.current, Requested: name, Err: err}
}

// FireLifecycle moves the manager to phase name through the configured
// callback. When name lies more than one step ahead, every phase in
// between is applied in index order.
func (m *Manager) FireLifecycle(name string) error {
	return m.fire(name, m.callback, true)
}

// fire plans and invokes the transition to name. executing stays set across
// the steps of a walk and is cleared on every exit path.
func (m *Manager) fire(name string, cb Callback, walk bool) error {
	if cb == nil {
		return &TransitionError{Manager: m.id, Current: m.CurrentPhase(), Requested: name, Err: ErrNoCallback}
	}

	m.mu.Lock()
	steps, err := m.planLocked(name, walk)
	if err != nil {
		terr := m.transitionError(name, err)
		m.mu.Unlock()
		return terr
	}
	m.executing = steps[0]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.executing = ""
		m.mu.Unlock()
	}()

	for _, step := range steps {
		if err := m.invoke(step, cb); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) invoke(phase string, cb Callback) error {
	m.mu.Lock()
	m.executing = phase
	m.lastExecuted = phase
	m.lastFailed = true
	m.mu.Unlock()

	m.logger.Debug("firing lifecycle phase", log.String("phase", phase))
	if err := cb.OnTransition(phase, m.object); err != nil {
		return err
	}

	m.mu.Lock()
	m.lastFailed = false
	previous := m.current
	m.current = phase
	m.completeLocked(phase)
	m.mu.Unlock()

	if m.emitter != nil {
		m.emitter.OnPhaseChange(previous, phase, "phase completed")
	}
	m.logger.Info("lifecycle phase completed",
		log.String("from", previous),
		log.String("to", phase),
	)
	return nil
}

func (m *Manager) completeLocked(phase string) {
	m.transitions[phase] = struct{}{}
	kept := m.completed[:0]
	for _, c := range m.completed {
		if c == phase || m.cancels(phase, c) {
			continue
		}
		kept = append(kept, c)
	}
	m.completed = append(kept, phase)
}

// cancels reports whether completing phase undoes the completed phase other.
func (m *Manager) cancels(phase, other string) bool {
	for _, p := range m.pairs {
		if p.Joins(phase, other) {
			return true
		}
	}
	return false
}

func (m *Manager) isPairEnd(name string) bool {
	for _, p := range m.pairs {
		if p.end == name {
			return true
		}
	}
	return false
}

// Reset returns the manager to NotInLifecycle and forgets completed phases.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.executing != "" {
		return m.transitionError(NotInLifecycle, ErrPhaseExecuting)
	}
	m.current = NotInLifecycle
	m.lastExecuted = ""
	m.lastFailed = false
	m.completed = nil
	m.transitions = make(map[string]struct{})
	return nil
}
