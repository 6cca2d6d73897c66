package lifecycle

// ApplyFunc applies a phase to obj. applied is false when obj does not
// implement the phase's capability, in which case err is always nil.
type ApplyFunc func(obj any) (applied bool, err error)

// Phase describes one named lifecycle transition: which capability it
// dispatches to, which phases may precede it, and the classes of managed
// objects it is applied to, in order.
type Phase struct {
	name      string
	apply     ApplyFunc
	opposite  string
	supported map[string]struct{}
	objects   []*Object
	ignored   []Matcher
	teardown  bool
}

// PhaseOption configures a Phase.
type PhaseOption func(*Phase)

// WithOpposite names the phase that undoes this one.
func WithOpposite(name string) PhaseOption {
	return func(p *Phase) { p.opposite = name }
}

// WithSupportedPhases restricts the phases this one may follow.
// Without it any predecessor is accepted.
func WithSupportedPhases(names ...string) PhaseOption {
	return func(p *Phase) {
		if p.supported == nil {
			p.supported = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			p.supported[n] = struct{}{}
		}
	}
}

// WithObjects sets the ordered object classes the phase is applied to.
func WithObjects(objects ...*Object) PhaseOption {
	return func(p *Phase) { p.objects = append(p.objects, objects...) }
}

// WithIgnored excludes matching objects from the phase.
func WithIgnored(matchers ...Matcher) PhaseOption {
	return func(p *Phase) { p.ignored = append(p.ignored, matchers...) }
}

// AsTeardown marks the phase best-effort: object failures are logged and
// skipped, and registry contents are visited in reverse dependency order.
func AsTeardown() PhaseOption {
	return func(p *Phase) { p.teardown = true }
}

// NewPhase creates a phase. When no object classes are given the phase
// applies to every object the registry hands out.
func NewPhase(name string, apply ApplyFunc, opts ...PhaseOption) *Phase {
	p := &Phase{name: name, apply: apply}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.objects) == 0 {
		p.objects = []*Object{NewObject(name, MatchAny)}
	}
	if p.apply == nil {
		p.apply = func(any) (bool, error) { return false, nil }
	}
	return p
}

// Name returns the phase name.
func (p *Phase) Name() string { return p.name }

// OppositePhase returns the name of the phase that undoes this one, if any.
func (p *Phase) OppositePhase() string { return p.opposite }

// IsTeardown reports whether failures in this phase are isolated per object.
func (p *Phase) IsTeardown() bool { return p.teardown }

// Objects returns the phase's object classes in application order.
func (p *Phase) Objects() []*Object {
	out := make([]*Object, len(p.objects))
	copy(out, p.objects)
	return out
}

// IsPhaseSupported reports whether this phase may be applied when the
// manager is currently in phase current.
func (p *Phase) IsPhaseSupported(current string) bool {
	if len(p.supported) == 0 {
		return true
	}
	if _, ok := p.supported[AllPhases]; ok {
		return true
	}
	_, ok := p.supported[current]
	return ok
}

// IsIgnored reports whether obj is excluded from this phase.
func (p *Phase) IsIgnored(obj any) bool {
	for _, m := range p.ignored {
		if m(obj) {
			return true
		}
	}
	return false
}

// Apply dispatches the phase to obj.
func (p *Phase) Apply(obj any) (bool, error) {
	if p.IsIgnored(obj) {
		return false, nil
	}
	return p.apply(obj)
}

func applyInitialise(obj any) (bool, error) {
	o, ok := obj.(Initialisable)
	if !ok {
		return false, nil
	}
	return true, o.Initialise()
}

func applyStart(obj any) (bool, error) {
	o, ok := obj.(Startable)
	if !ok {
		return false, nil
	}
	return true, o.Start()
}

func applyStop(obj any) (bool, error) {
	o, ok := obj.(Stoppable)
	if !ok {
		return false, nil
	}
	return true, o.Stop()
}

func applyDispose(obj any) (bool, error) {
	o, ok := obj.(Disposable)
	if !ok {
		return false, nil
	}
	return true, o.Dispose()
}

// NewInitialisePhase returns the initialise phase, legal only from NotInLifecycle.
func NewInitialisePhase(opts ...PhaseOption) *Phase {
	base := []PhaseOption{WithOpposite(Dispose), WithSupportedPhases(NotInLifecycle)}
	return NewPhase(Initialise, applyInitialise, append(base, opts...)...)
}

// NewStartPhase returns the start phase, legal after initialise or stop.
func NewStartPhase(opts ...PhaseOption) *Phase {
	base := []PhaseOption{WithOpposite(Stop), WithSupportedPhases(Initialise, Stop)}
	return NewPhase(Start, applyStart, append(base, opts...)...)
}

// NewStopPhase returns the stop phase, legal after start.
func NewStopPhase(opts ...PhaseOption) *Phase {
	base := []PhaseOption{WithOpposite(Start), WithSupportedPhases(Start), AsTeardown()}
	return NewPhase(Stop, applyStop, append(base, opts...)...)
}

// NewDisposePhase returns the dispose phase, legal from any phase.
func NewDisposePhase(opts ...PhaseOption) *Phase {
	base := []PhaseOption{WithOpposite(Initialise), WithSupportedPhases(AllPhases), AsTeardown()}
	return NewPhase(Dispose, applyDispose, append(base, opts...)...)
}

// DefaultPhases returns initialise, start, stop and dispose, in index order.
func DefaultPhases() []*Phase {
	return []*Phase{
		NewInitialisePhase(),
		NewStartPhase(),
		NewStopPhase(),
		NewDisposePhase(),
	}
}

func newNotInLifecyclePhase() *Phase {
	return NewPhase(NotInLifecycle, nil)
}
