package lifecycle

import (
	"time"

	"github.com/bft-labs/mulecore/pkg/log"
)

// RegistryManager drives every object of a Registry through the container's
// phases and fires container notifications around each phase.
type RegistryManager struct {
	*Manager
	callback *RegistryCallback
	listener Listener
}

// NewRegistryManager creates a manager for the container identified by id.
// Unless WithInterceptor is given, stop is skipped for objects that failed
// to start and dispose for objects that failed to initialise.
func NewRegistryManager(id string, registry Registry, opts ...Option) *RegistryManager {
	o := options{interceptor: DefaultInterceptor()}
	for _, opt := range opts {
		opt(&o)
	}

	rm := &RegistryManager{listener: o.listener}
	managerOpts := append([]Option{}, opts...)
	managerOpts = append(managerOpts, WithCallback(CallbackFunc(rm.onTransition)))
	rm.Manager = NewManager(id, registry, managerOpts...)
	rm.callback = NewRegistryCallback(registry, rm.Manager, o.interceptor, o.listener, o.logger)
	rm.callback.manager = id
	return rm
}

func (rm *RegistryManager) onTransition(phase string, object any) error {
	actions, notify := phaseActions[phase]
	if notify {
		rm.notify(actions[0], phase)
	}
	if err := rm.callback.OnTransition(phase, object); err != nil {
		return err
	}
	if notify {
		rm.notify(actions[1], phase)
	}
	return nil
}

func (rm *RegistryManager) notify(action NotificationAction, phase string) {
	if rm.listener == nil {
		return
	}
	rm.listener.OnNotification(Notification{
		Action:  action,
		Phase:   phase,
		Source:  rm.id,
		Manager: rm.id,
		Time:    time.Now(),
	})
}

// ApplyCompletedPhases brings obj, registered after the container has moved
// through some phases, up to the container's state. Opened pairs are
// replayed and closed ones skipped: a started container initialises and
// starts obj, a stopped one only initialises it, a disposed one does nothing.
func (rm *RegistryManager) ApplyCompletedPhases(name string, obj any) error {
	rm.mu.Lock()
	if rm.current == Dispose {
		rm.mu.Unlock()
		return nil
	}
	var replay []*Phase
	for _, c := range rm.completed {
		if c == NotInLifecycle || rm.isPairEnd(c) {
			continue
		}
		replay = append(replay, rm.phases[c])
	}
	rm.mu.Unlock()

	for _, p := range replay {
		if p.IsIgnored(obj) {
			continue
		}
		if _, err := p.Apply(obj); err != nil {
			rm.logger.Error("applying completed phase to late object failed",
				log.String("phase", p.name),
				log.String("object", name),
				log.Err(err),
			)
			return &PhaseError{Phase: p.name, Target: name, Err: err}
		}
	}
	return nil
}
