package queue

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bft-labs/mulecore/pkg/journal"
	"github.com/bft-labs/mulecore/pkg/lifecycle"
	"github.com/bft-labs/mulecore/pkg/log"
	"github.com/bft-labs/mulecore/pkg/queuestore"
)

// Manager owns every queue of one process together with the journal and
// the in-flight XA transactions. Queues are created on first use.
type Manager struct {
	opts    options
	logger  log.Logger
	metrics *Metrics
	lc      *lifecycle.SimpleManager

	mu            sync.Mutex
	queues        map[string]*queueInfo
	defaultConfig Configuration
	configs       map[string]Configuration
	running       bool
	stopping      chan struct{}
	journal       *journal.Journal
	xa            map[string]*transaction
	xaTimeout     time.Duration

	waiters sync.WaitGroup
}

// NewManager creates a stopped queue manager.
func NewManager(opts ...Option) *Manager {
	o := options{
		maxFileSize:     queuestore.DefaultMaxFileSize,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		opts:    o,
		logger:  log.OrNoop(o.logger).With(log.String("component", "queue-manager")),
		metrics: o.metrics,
		queues:  make(map[string]*queueInfo),
		configs: make(map[string]Configuration),
		xa:      make(map[string]*transaction),
	}
	m.lc = lifecycle.NewSimpleManager("queue-manager", m, lifecycle.WithLogger(m.logger))
	return m
}

// Initialise validates the configuration.
func (m *Manager) Initialise() error {
	return m.lc.FireInitialise(func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if err := m.defaultConfig.Validate(); err != nil {
			return err
		}
		for name, c := range m.configs {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("queue %q: %w", name, err)
			}
		}
		return nil
	})
}

// Start opens the journal and recovers the transactions it left open.
func (m *Manager) Start() error {
	return m.lc.FireStart(m.doStart)
}

func (m *Manager) doStart() error {
	if m.opts.strategy != nil {
		if err := m.opts.strategy.Open(); err != nil {
			return err
		}
	}
	j, err := m.openJournal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.journal = j
	m.running = true
	m.stopping = make(chan struct{})
	m.mu.Unlock()

	if err := m.recover(); err != nil {
		m.mu.Lock()
		m.running = false
		m.journal = nil
		m.mu.Unlock()
		j.Close()
		return err
	}
	m.logger.Info("queue manager started",
		log.String("data_dir", m.opts.dataDir),
		log.Bool("journal", j.IsPersistent()),
	)
	return nil
}

func (m *Manager) openJournal() (*journal.Journal, error) {
	jopts := []journal.Option{
		journal.WithLogger(m.logger),
		journal.WithSync(m.opts.journalSync),
	}
	if m.opts.dataDir == "" {
		return journal.NewMemory(jopts...), nil
	}
	return journal.Open(filepath.Join(m.opts.dataDir, JournalFile), jopts...)
}

// Stop wakes every blocked caller, waits for them to leave and closes the
// queue stores. Prepared XA transactions stay in the journal.
func (m *Manager) Stop() error {
	return m.lc.FireStop(m.doStop)
}

func (m *Manager) doStop() error {
	m.mu.Lock()
	if m.running {
		m.running = false
		close(m.stopping)
	}
	m.mu.Unlock()

	waitErr := m.waitWithTimeout(m.opts.shutdownTimeout)

	m.mu.Lock()
	queues := m.queues
	j := m.journal
	m.queues = make(map[string]*queueInfo)
	m.xa = make(map[string]*transaction)
	m.journal = nil
	m.mu.Unlock()

	var errs []error
	for _, q := range queues {
		q.mu.Lock()
		errs = append(errs, q.store.Close())
		q.mu.Unlock()
	}
	if j != nil {
		errs = append(errs, j.Close())
	}
	if strategy := m.opts.strategy; strategy != nil {
		errs = append(errs, strategy.Close())
	}
	if err := errors.Join(errs...); err != nil {
		m.logger.Warn("closing queue stores failed", log.Err(err))
	}
	m.logger.Info("queue manager stopped")
	return waitErr
}

// waitWithTimeout waits for blocked callers to leave.
func (m *Manager) waitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		m.waiters.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		m.logger.Warn("shutdown timeout, abandoning blocked callers",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}

// Dispose stops a running manager and releases its configuration.
func (m *Manager) Dispose() error {
	return m.lc.FireDispose(func() error {
		m.mu.Lock()
		running := m.running
		m.mu.Unlock()

		var err error
		if running {
			err = m.doStop()
		}

		m.mu.Lock()
		m.configs = make(map[string]Configuration)
		m.mu.Unlock()
		return err
	})
}

// Lifecycle returns the manager's phase state.
func (m *Manager) Lifecycle() lifecycle.State {
	return m.lc.State()
}

// enter registers a caller about to block. It fails once the manager stops.
func (m *Manager) enter() (<-chan struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil, false
	}
	m.waiters.Add(1)
	return m.stopping, true
}

func (m *Manager) isStopping(stopping <-chan struct{}) bool {
	select {
	case <-stopping:
		return true
	default:
		return false
	}
}

// SetDefaultQueueConfiguration sets the configuration of queues without
// one of their own.
func (m *Manager) SetDefaultQueueConfiguration(c Configuration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = c
	return nil
}

// SetQueueConfiguration configures queue name. A queue already in use
// takes the new capacity at once; its persistence cannot change until
// the manager restarts.
func (m *Manager) SetQueueConfiguration(name string, c Configuration) error {
	if name == "" {
		return ErrEmptyQueueName
	}
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.configs[name] = c
	q := m.queues[name]
	m.mu.Unlock()

	if q == nil {
		return nil
	}
	if q.store.IsPersistent() != c.Persistent && (m.opts.dataDir != "" || m.opts.strategy != nil) {
		m.logger.Warn("queue persistence change deferred until restart",
			log.String("queue", name),
			log.Bool("persistent", c.Persistent),
		)
	}
	q.setConfig(c, m.metrics)
	return nil
}

// QueueConfiguration returns the configuration that applies to name.
func (m *Manager) QueueConfiguration(name string) Configuration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configLocked(name)
}

func (m *Manager) configLocked(name string) Configuration {
	if c, ok := m.configs[name]; ok {
		return c
	}
	return m.defaultConfig
}

// Session returns a new session. Sessions are not safe for concurrent use.
func (m *Manager) Session() *Session {
	return &Session{m: m}
}

// queue returns the queue called name, opening its store on first use.
func (m *Manager) queue(name string) (*queueInfo, error) {
	if name == "" {
		return nil, ErrEmptyQueueName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil, ErrNotStarted
	}
	if q, ok := m.queues[name]; ok {
		return q, nil
	}

	config := m.configLocked(name)
	store, err := m.openStore(name, config)
	if err != nil {
		return nil, err
	}
	q := newQueueInfo(name, store, config)
	m.queues[name] = q
	m.metrics.setSize(name, store.Size())
	if n := store.Size(); n > 0 {
		m.logger.Info("queue restored", log.String("queue", name), log.Int("size", n))
	}
	return q, nil
}

func (m *Manager) openStore(name string, c Configuration) (queuestore.Store, error) {
	switch {
	case !c.Persistent:
		return queuestore.NewMemoryStore(name), nil
	case m.opts.strategy != nil:
		return queuestore.OpenStrategyStore(name, m.opts.strategy)
	case m.opts.dataDir != "":
		return queuestore.OpenDualFileStore(name, m.opts.dataDir,
			queuestore.WithMaxFileSize(m.opts.maxFileSize),
			queuestore.WithLogger(m.logger),
		)
	default:
		return queuestore.NewMemoryStore(name), nil
	}
}

// DisposeQueue deletes queue name outside any transaction. Its items and
// store files are removed and callers blocked on it fail with
// ErrQueueDisposed. The next use of the name creates an empty queue.
func (m *Manager) DisposeQueue(name string) error {
	q, err := m.queue(name)
	if err != nil {
		return err
	}
	return m.disposeQueue(q)
}

// disposeQueue holds the manager lock so the name cannot be reopened onto
// files that are being deleted.
func (m *Manager) disposeQueue(q *queueInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queues[q.name] == q {
		delete(m.queues, q.name)
	}
	if err := q.dispose(m.metrics); err != nil {
		return fmt.Errorf("queue %q: dispose: %w", q.name, err)
	}
	m.logger.Info("queue disposed", log.String("queue", q.name))
	return nil
}

// QueueNames returns the names of the queues opened so far.
func (m *Manager) QueueNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}

func (m *Manager) currentJournal() (*journal.Journal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.journal == nil {
		return nil, ErrNotStarted
	}
	return m.journal, nil
}
