package lifecycle

import (
	"github.com/bft-labs/mulecore/pkg/log"
)

// PhaseLookup resolves phase definitions by name.
type PhaseLookup interface {
	Phase(name string) (*Phase, bool)
}

// RegistryCallback applies a phase to every managed object handed out by a
// Registry, one Object class at a time.
type RegistryCallback struct {
	registry    Registry
	phases      PhaseLookup
	interceptor Interceptor
	listener    Listener
	logger      log.Logger
	manager     string
}

// NewRegistryCallback creates a callback over registry. Phase definitions are
// resolved through phases at transition time.
func NewRegistryCallback(registry Registry, phases PhaseLookup, interceptor Interceptor, listener Listener, logger log.Logger) *RegistryCallback {
	if interceptor == nil {
		interceptor = NullInterceptor{}
	}
	return &RegistryCallback{
		registry:    registry,
		phases:      phases,
		interceptor: interceptor,
		listener:    listener,
		logger:      log.OrNoop(logger),
	}
}

// OnTransition applies phase to the registry contents.
func (c *RegistryCallback) OnTransition(phase string, object any) error {
	p, ok := c.phases.Phase(phase)
	if !ok {
		return ErrUnknownPhase
	}
	if err := c.applyPhase(p); err != nil {
		return err
	}
	c.interceptor.OnPhaseCompleted(phase)
	return nil
}

// applyPhase walks the phase's object classes in order. Targets are processed
// at most once per pass even if several classes match them.
func (c *RegistryCallback) applyPhase(p *Phase) error {
	processed := make(map[string]struct{})
	for _, o := range p.objects {
		o.FirePreNotification(p.name, c.manager, c.listener)
		if err := c.applyObject(p, o, processed); err != nil {
			return err
		}
		o.FirePostNotification(p.name, c.manager, c.listener)
	}
	return nil
}

// applyObject applies p to the targets of class o, then keeps looking up the
// class until a lookup yields nothing new, picking up objects registered
// by the pass itself.
func (c *RegistryCallback) applyObject(p *Phase, o *Object, processed map[string]struct{}) error {
	for {
		pending, err := c.lookup(p, o, processed)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		for _, t := range pending {
			processed[t.Name] = struct{}{}
			if err := c.applyTarget(p, t); err != nil {
				return err
			}
		}
	}
}

func (c *RegistryCallback) lookup(p *Phase, o *Object, processed map[string]struct{}) ([]Target, error) {
	targets, err := c.registry.LookupObjectsForLifecycle(o.Matcher())
	if err != nil {
		return nil, err
	}
	if p.teardown {
		for i, j := 0, len(targets)-1; i < j; i, j = i+1, j-1 {
			targets[i], targets[j] = targets[j], targets[i]
		}
	}
	pending := targets[:0]
	for _, t := range targets {
		if _, done := processed[t.Name]; done {
			continue
		}
		if p.IsIgnored(t.Object) {
			processed[t.Name] = struct{}{}
			continue
		}
		pending = append(pending, t)
	}
	return pending, nil
}

func (c *RegistryCallback) applyTarget(p *Phase, t Target) error {
	if !c.interceptor.BeforePhase(p.name, t.Object) {
		c.logger.Debug("lifecycle phase vetoed by interceptor",
			log.String("phase", p.name),
			log.String("object", t.Name),
		)
		return nil
	}

	applied, err := p.Apply(t.Object)
	if !applied {
		return nil
	}
	c.interceptor.AfterPhase(p.name, t.Object, err)
	if err == nil {
		return nil
	}

	if p.teardown {
		c.logger.Warn("lifecycle phase failed, continuing",
			log.String("phase", p.name),
			log.String("object", t.Name),
			log.Err(err),
		)
		return nil
	}
	c.logger.Error("lifecycle phase failed",
		log.String("phase", p.name),
		log.String("object", t.Name),
		log.Err(err),
	)
	return &PhaseError{Phase: p.name, Target: t.Name, Err: err}
}
