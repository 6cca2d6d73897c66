package lifecycle

import (
	"errors"
	"fmt"
)

// Lifecycle errors. Use errors.Is to test for them; transition failures are
// reported as *TransitionError and object failures as *PhaseError.
var (
	ErrPhaseExecuting    = errors.New("lifecycle: a phase is already executing")
	ErrAlreadyInPhase    = errors.New("lifecycle: already in requested phase")
	ErrUnknownPhase      = errors.New("lifecycle: unknown phase")
	ErrIllegalTransition = errors.New("lifecycle: illegal phase transition")
	ErrNoCallback        = errors.New("lifecycle: no callback configured")
	ErrInvalidPair       = errors.New("lifecycle: pair begin and end must differ")
)

// TransitionError reports a phase request rejected by a manager.
type TransitionError struct {
	Manager   string
	Current   string
	Requested string
	Err       error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle manager %q: cannot fire %q from %q: %v",
		e.Manager, e.Requested, e.Current, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// PhaseError reports a managed object that failed while a phase was applied to it.
type PhaseError struct {
	Phase  string
	Target string
	Err    error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("lifecycle phase %q failed for %q: %v", e.Phase, e.Target, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
