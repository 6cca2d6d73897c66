package queue

import (
	"time"

	"github.com/bft-labs/mulecore/pkg/log"
	"github.com/bft-labs/mulecore/pkg/objectstore"
)

// Forever disables the timeout of Offer and Poll.
const Forever time.Duration = -1

// DefaultShutdownTimeout bounds how long Stop waits for blocked callers.
const DefaultShutdownTimeout = 30 * time.Second

// JournalFile is the journal file name under the data directory.
const JournalFile = "queue.journal"

// Configuration describes one queue.
type Configuration struct {
	// Capacity bounds the number of items, 0 for unbounded.
	Capacity int
	// Persistent keeps items across restarts.
	Persistent bool
}

// Validate rejects a negative capacity.
func (c Configuration) Validate() error {
	if c.Capacity < 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger          log.Logger
	dataDir         string
	journal         bool
	journalSync     bool
	maxFileSize     int64
	strategy        objectstore.Strategy
	metrics         *Metrics
	shutdownTimeout time.Duration
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDataDir sets the directory holding queue files and the journal.
// Without it persistent queues are kept in memory.
func WithDataDir(dir string) Option {
	return func(o *options) { o.dataDir = dir }
}

// WithJournal logs local transactions to the journal. XA transactions are
// always journalled.
func WithJournal(enabled bool) Option {
	return func(o *options) { o.journal = enabled }
}

// WithJournalSync syncs every journal record, not only transaction markers.
func WithJournalSync(enabled bool) Option {
	return func(o *options) { o.journalSync = enabled }
}

// WithMaxFileSize sets the rotation threshold of persistent queue files.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// WithPersistenceStrategy stores persistent queues through s, one record
// per item, instead of queue files.
func WithPersistenceStrategy(s objectstore.Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithMetrics records queue activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithShutdownTimeout bounds how long Stop waits for blocked callers.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { o.shutdownTimeout = d }
}
