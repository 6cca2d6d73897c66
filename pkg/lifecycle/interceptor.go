package lifecycle

import (
	"reflect"
	"sync"
)

// Interceptor observes phase application to individual objects.
// BeforePhase may veto application by returning false.
type Interceptor interface {
	BeforePhase(phase string, obj any) bool
	AfterPhase(phase string, obj any, err error)
	OnPhaseCompleted(phase string)
}

// NullInterceptor lets every object through and records nothing.
type NullInterceptor struct{}

// BeforePhase allows every object.
func (NullInterceptor) BeforePhase(string, any) bool { return true }

// AfterPhase does nothing.
func (NullInterceptor) AfterPhase(string, any, error) {}

// OnPhaseCompleted does nothing.
func (NullInterceptor) OnPhaseCompleted(string) {}

// ChainInterceptor runs several interceptors in order. An object is
// vetoed as soon as one of them returns false from BeforePhase.
type ChainInterceptor []Interceptor

// BeforePhase asks each interceptor in turn and stops at the first veto.
func (c ChainInterceptor) BeforePhase(phase string, obj any) bool {
	for _, i := range c {
		if !i.BeforePhase(phase, obj) {
			return false
		}
	}
	return true
}

// AfterPhase notifies every interceptor.
func (c ChainInterceptor) AfterPhase(phase string, obj any, err error) {
	for _, i := range c {
		i.AfterPhase(phase, obj, err)
	}
}

// OnPhaseCompleted notifies every interceptor.
func (c ChainInterceptor) OnPhaseCompleted(phase string) {
	for _, i := range c {
		i.OnPhaseCompleted(phase)
	}
}

// PhaseErrorInterceptor remembers objects that failed the tracking phase and
// skips them when the intercepted phase is applied, so a component that
// never started is not asked to stop. The failure set lives until the
// intercepted phase completes.
type PhaseErrorInterceptor struct {
	tracking    string
	intercepted string
	match       Matcher

	mu     sync.Mutex
	failed map[any]struct{}
}

// NewPhaseErrorInterceptor tracks failures of tracking and vetoes them in
// intercepted, for objects selected by match (nil selects all).
func NewPhaseErrorInterceptor(tracking, intercepted string, match Matcher) *PhaseErrorInterceptor {
	if match == nil {
		match = MatchAny
	}
	return &PhaseErrorInterceptor{
		tracking:    tracking,
		intercepted: intercepted,
		match:       match,
		failed:      make(map[any]struct{}),
	}
}

// BeforePhase vetoes objects that failed the tracking phase.
func (i *PhaseErrorInterceptor) BeforePhase(phase string, obj any) bool {
	if phase != i.intercepted || !trackable(obj) {
		return true
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	_, failed := i.failed[obj]
	return !failed
}

// AfterPhase records a tracking phase failure.
func (i *PhaseErrorInterceptor) AfterPhase(phase string, obj any, err error) {
	if phase != i.tracking || err == nil || !i.match(obj) || !trackable(obj) {
		return
	}
	i.mu.Lock()
	i.failed[obj] = struct{}{}
	i.mu.Unlock()
}

// OnPhaseCompleted forgets recorded failures once the intercepted phase is done.
func (i *PhaseErrorInterceptor) OnPhaseCompleted(phase string) {
	if phase != i.intercepted {
		return
	}
	i.mu.Lock()
	i.failed = make(map[any]struct{})
	i.mu.Unlock()
}

// Failed reports whether obj is currently recorded as a tracking failure.
func (i *PhaseErrorInterceptor) Failed(obj any) bool {
	if !trackable(obj) {
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.failed[obj]
	return ok
}

// trackable reports whether obj can be used as an identity key.
func trackable(obj any) bool {
	if obj == nil {
		return false
	}
	return reflect.TypeOf(obj).Comparable()
}

// DefaultInterceptor skips stop for objects whose start failed and dispose
// for objects whose initialise failed.
func DefaultInterceptor() Interceptor {
	return ChainInterceptor{
		NewPhaseErrorInterceptor(Start, Stop, MatchType[Startable]()),
		NewPhaseErrorInterceptor(Initialise, Dispose, MatchType[Initialisable]()),
	}
}
