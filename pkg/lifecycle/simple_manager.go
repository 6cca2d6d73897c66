package lifecycle

// SimpleManager is a lifecycle manager for a single component. Each Fire
// method validates the transition, runs fn and records the new phase. Only
// single-step transitions are accepted.
type SimpleManager struct {
	*Manager
}

// NewSimpleManager creates a manager for component object.
func NewSimpleManager(id string, object any, opts ...Option) *SimpleManager {
	return &SimpleManager{Manager: NewManager(id, object, opts...)}
}

// FireInitialise runs fn as the initialise phase of the component.
func (s *SimpleManager) FireInitialise(fn func() error) error { return s.fireSingle(Initialise, fn) }

// FireStart runs fn as the start phase.
func (s *SimpleManager) FireStart(fn func() error) error { return s.fireSingle(Start, fn) }

// FireStop runs fn as the stop phase.
func (s *SimpleManager) FireStop(fn func() error) error { return s.fireSingle(Stop, fn) }

// FireDispose runs fn as the dispose phase.
func (s *SimpleManager) FireDispose(fn func() error) error { return s.fireSingle(Dispose, fn) }

func (s *SimpleManager) fireSingle(phase string, fn func() error) error {
	return s.fire(phase, CallbackFunc(func(string, any) error {
		if fn == nil {
			return nil
		}
		return fn()
	}), false)
}
