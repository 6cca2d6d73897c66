package mulecore

import (
	"fmt"

	"github.com/bft-labs/mulecore/internal/configwatch"
	"github.com/bft-labs/mulecore/pkg/lifecycle"
	"github.com/bft-labs/mulecore/pkg/log"
	"github.com/bft-labs/mulecore/pkg/queue"
	"github.com/bft-labs/mulecore/pkg/registry"
)

// Names under which the container registers its own components.
const (
	QueueManagerName  = "_queueManager"
	ConfigWatcherName = "_configWatcher"
)

// Container hosts a registry of components and the queue manager and moves
// them through the lifecycle together. Use New to create one.
type Container struct {
	config    Config
	logger    log.Logger
	registry  *registry.Registry
	lifecycle *lifecycle.RegistryManager
	queues    *queue.Manager
	watcher   *configwatch.Watcher
}

// New creates a container in the not-in-lifecycle phase.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Container, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger).With(log.String("container", cfg.ID))

	queues, err := newQueueManager(cfg, o, logger)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	if err := reg.Register(QueueManagerName, queues); err != nil {
		return nil, err
	}

	var watcher *configwatch.Watcher
	if o.watchPath != "" {
		watchOpts := []configwatch.Option{configwatch.WithLogger(logger)}
		if o.watchDebounce > 0 {
			watchOpts = append(watchOpts, configwatch.WithDebounce(o.watchDebounce))
		}
		watcher = configwatch.New(o.watchPath, queues, watchOpts...)
		if err := reg.Register(ConfigWatcherName, watcher, QueueManagerName); err != nil {
			return nil, err
		}
	}

	for _, obj := range o.objects {
		if err := reg.Register(obj.name, obj.value, obj.dependsOn...); err != nil {
			return nil, err
		}
	}

	lcOpts := []lifecycle.Option{lifecycle.WithLogger(logger)}
	if o.emitter != nil {
		lcOpts = append(lcOpts, lifecycle.WithEventEmitter(o.emitter))
	}
	if o.listener != nil {
		lcOpts = append(lcOpts, lifecycle.WithListener(o.listener))
	}

	return &Container{
		config:    cfg,
		logger:    logger,
		registry:  reg,
		lifecycle: lifecycle.NewRegistryManager(cfg.ID, reg, lcOpts...),
		queues:    queues,
		watcher:   watcher,
	}, nil
}

func newQueueManager(cfg Config, o options, logger log.Logger) (*queue.Manager, error) {
	qopts := []queue.Option{
		queue.WithLogger(logger),
		queue.WithDataDir(cfg.DataDir),
		queue.WithJournal(cfg.Journal),
		queue.WithJournalSync(cfg.JournalSync),
		queue.WithMaxFileSize(cfg.MaxFileSize),
		queue.WithShutdownTimeout(cfg.ShutdownTimeout),
	}
	if o.strategy != nil {
		qopts = append(qopts, queue.WithPersistenceStrategy(o.strategy))
	}
	if o.registerer != nil {
		metrics, err := queue.NewMetrics(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("queue metrics: %w", err)
		}
		qopts = append(qopts, queue.WithMetrics(metrics))
	}

	qm := queue.NewManager(qopts...)
	if err := qm.SetDefaultQueueConfiguration(cfg.DefaultQueue); err != nil {
		return nil, err
	}
	for name, c := range cfg.Queues {
		if err := qm.SetQueueConfiguration(name, c); err != nil {
			return nil, err
		}
	}
	return qm, nil
}

// Initialise initialises every registered object in dependency order.
func (c *Container) Initialise() error {
	return c.lifecycle.FireLifecycle(lifecycle.Initialise)
}

// Start starts every registered object in dependency order, initialising
// first if needed. The first failure aborts the phase.
func (c *Container) Start() error {
	return c.lifecycle.FireLifecycle(lifecycle.Start)
}

// Stop stops every started object in reverse dependency order. Failures are
// logged and the remaining objects are still stopped.
func (c *Container) Stop() error {
	return c.lifecycle.FireLifecycle(lifecycle.Stop)
}

// Dispose stops the container if it is started, or if a start attempt
// failed part way, then disposes every object. A disposed container cannot
// be restarted.
func (c *Container) Dispose() error {
	if s := c.lifecycle.State(); s.IsStarted() || s.IsStartFailed() {
		if err := c.Stop(); err != nil {
			return err
		}
	}
	return c.lifecycle.FireLifecycle(lifecycle.Dispose)
}

// Register adds obj to the container under name. When the container has
// already moved through some phases, obj is brought up to the same phase.
func (c *Container) Register(name string, obj any, dependsOn ...string) error {
	if err := c.registry.Register(name, obj, dependsOn...); err != nil {
		return err
	}
	if err := c.lifecycle.ApplyCompletedPhases(name, obj); err != nil {
		if _, uerr := c.registry.Unregister(name); uerr != nil {
			c.logger.Warn("unregistering failed object", log.String("object", name), log.Err(uerr))
		}
		return err
	}
	c.logger.Debug("object registered", log.String("object", name))
	return nil
}

// Lookup returns the object registered under name.
func (c *Container) Lookup(name string) (any, bool) {
	return c.registry.Lookup(name)
}

// QueueManager returns the container's queue manager.
func (c *Container) QueueManager() *queue.Manager {
	return c.queues
}

// Phase returns the name of the container's current phase.
func (c *Container) Phase() string {
	return c.lifecycle.CurrentPhase()
}

// State returns the container's phase state.
func (c *Container) State() lifecycle.State {
	return c.lifecycle.State()
}

// Lifecycle returns the manager driving the container.
func (c *Container) Lifecycle() *lifecycle.RegistryManager {
	return c.lifecycle
}

// Config returns the configuration the container was created with.
func (c *Container) Config() Config {
	return c.config
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	versions := ModuleVersions()
	for name, minVersion := range CompatibilityMatrix() {
		if !isVersionCompatible(versions[name], minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, versions[name], minVersion)
		}
	}
	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
