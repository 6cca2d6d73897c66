package lifecycle

// Phase names understood by the default phase set.
const (
	NotInLifecycle = "not in lifecycle"
	Initialise     = "initialise"
	Start          = "start"
	Stop           = "stop"
	Dispose        = "dispose"

	// AllPhases may be used in a supported-phase set to accept any predecessor.
	AllPhases = "*"
)

// Initialisable is implemented by objects taking part in the initialise phase.
type Initialisable interface {
	Initialise() error
}

// Startable is implemented by objects taking part in the start phase.
type Startable interface {
	Start() error
}

// Stoppable is implemented by objects taking part in the stop phase.
type Stoppable interface {
	Stop() error
}

// Disposable is implemented by objects taking part in the dispose phase.
type Disposable interface {
	Dispose() error
}

// EventEmitter is called after a manager completes a phase.
type EventEmitter interface {
	OnPhaseChange(previous, current, reason string)
}

// Callback applies a phase on behalf of a manager.
type Callback interface {
	OnTransition(phase string, object any) error
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(phase string, object any) error

// OnTransition calls f.
func (f CallbackFunc) OnTransition(phase string, object any) error {
	return f(phase, object)
}

// Target is one managed object as handed out by a Registry.
type Target struct {
	Name   string
	Object any
}

// Registry supplies the managed objects a RegistryManager drives.
// Implementations return matching objects in dependency order.
type Registry interface {
	LookupObjectsForLifecycle(match Matcher) ([]Target, error)
}
