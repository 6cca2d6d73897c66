package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/bft-labs/mulecore/pkg/log"
)

// DefaultTruncateThreshold is the file size past which an idle journal is emptied.
const DefaultTruncateThreshold int64 = 1 << 20

// Transaction is an unterminated transaction and its logged operations.
type Transaction struct {
	ID       uuid.UUID
	Entries  []Entry
	Prepared bool
	// Xid is the value of the prepare record.
	Xid []byte
}

// Option configures a Journal.
type Option func(*Journal)

// WithSync makes every record reach stable storage before the call
// returns. Prepare, commit and rollback records are always synced.
func WithSync(sync bool) Option {
	return func(j *Journal) { j.syncAll = sync }
}

// WithTruncateThreshold sets the size past which an idle journal is emptied.
func WithTruncateThreshold(n int64) Option {
	return func(j *Journal) { j.threshold = n }
}

// WithLogger sets the journal logger.
func WithLogger(l log.Logger) Option {
	return func(j *Journal) { j.logger = log.OrNoop(l) }
}

// Journal is an append-only transaction log, file backed or in memory.
type Journal struct {
	path      string
	syncAll   bool
	threshold int64
	logger    log.Logger

	mu     sync.Mutex
	file   *os.File
	size   int64
	open   map[uuid.UUID]*Transaction
	order  []uuid.UUID
	closed bool
}

func newJournal(opts []Option) *Journal {
	j := &Journal{
		threshold: DefaultTruncateThreshold,
		logger:    log.NoopLogger{},
		open:      make(map[uuid.UUID]*Transaction),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// NewMemory creates a journal that keeps open transactions in memory only.
func NewMemory(opts ...Option) *Journal {
	return newJournal(opts)
}

// Open opens or creates the journal file at path and recovers the
// transactions it leaves open.
func Open(path string, opts ...Option) (*Journal, error) {
	j := newJournal(opts)
	j.path = path

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	j.file = f

	if err := j.recover(); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

// recover replays the file. Everything after the first incomplete or
// unreadable record is discarded.
func (j *Journal) recover() error {
	r := bufio.NewReader(j.file)
	var offset int64
	for {
		e, n, err := decode(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			j.logger.Warn("journal tail discarded",
				log.String("path", j.path),
				log.Int64("offset", offset),
				log.Err(err),
			)
			break
		}
		j.apply(e)
		offset += n
	}

	info, err := j.file.Stat()
	if err != nil {
		return fmt.Errorf("journal: recover %s: %w", j.path, err)
	}
	if info.Size() > offset {
		if err := j.file.Truncate(offset); err != nil {
			return fmt.Errorf("journal: recover %s: %w", j.path, err)
		}
	}
	if _, err := j.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("journal: recover %s: %w", j.path, err)
	}
	j.size = offset

	if len(j.open) > 0 {
		j.logger.Info("journal recovered open transactions",
			log.String("path", j.path),
			log.Int("transactions", len(j.open)),
		)
	}
	return nil
}

// apply folds e into the open transaction set.
func (j *Journal) apply(e Entry) {
	if e.Kind.terminal() {
		if _, ok := j.open[e.Tx]; ok {
			delete(j.open, e.Tx)
			for i, id := range j.order {
				if id == e.Tx {
					j.order = append(j.order[:i], j.order[i+1:]...)
					break
				}
			}
		}
		return
	}

	tx, ok := j.open[e.Tx]
	if !ok {
		tx = &Transaction{ID: e.Tx}
		j.open[e.Tx] = tx
		j.order = append(j.order, e.Tx)
	}
	if e.Kind == KindPrepare {
		tx.Prepared = true
		tx.Xid = e.Value
		return
	}
	tx.Entries = append(tx.Entries, e)
}

func (j *Journal) write(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	if j.file != nil {
		buf, err := e.encode()
		if err != nil {
			return err
		}
		if _, err := j.file.Write(buf); err != nil {
			return fmt.Errorf("journal: write %s: %w", j.path, err)
		}
		j.size += int64(len(buf))
		if j.syncAll || e.Kind == KindPrepare || e.Kind.terminal() {
			if err := j.file.Sync(); err != nil {
				return fmt.Errorf("journal: sync %s: %w", j.path, err)
			}
		}
	}

	j.apply(e)
	if e.Kind.terminal() {
		return j.maybeTruncateLocked()
	}
	return nil
}

func (j *Journal) maybeTruncateLocked() error {
	if j.file == nil || len(j.open) > 0 || j.size <= j.threshold {
		return nil
	}
	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("journal: truncate %s: %w", j.path, err)
	}
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("journal: truncate %s: %w", j.path, err)
	}
	j.logger.Debug("journal truncated", log.String("path", j.path), log.Int64("size", j.size))
	j.size = 0
	return nil
}

// LogAdd records an item staged for the tail of queue.
func (j *Journal) LogAdd(tx uuid.UUID, queue string, value []byte) error {
	return j.write(Entry{Kind: KindAdd, Tx: tx, Queue: queue, Value: value})
}

// LogAddFirst records an item staged for the head of queue.
func (j *Journal) LogAddFirst(tx uuid.UUID, queue string, value []byte) error {
	return j.write(Entry{Kind: KindAddFirst, Tx: tx, Queue: queue, Value: value})
}

// LogRemove records an item taken from queue by tx.
func (j *Journal) LogRemove(tx uuid.UUID, queue string, value []byte) error {
	return j.write(Entry{Kind: KindRemove, Tx: tx, Queue: queue, Value: value})
}

// LogConsume records that tx consumed its own staged head item.
func (j *Journal) LogConsume(tx uuid.UUID, queue string) error {
	return j.write(Entry{Kind: KindConsume, Tx: tx, Queue: queue})
}

// LogPrepare marks tx in doubt. xid is returned by Pending after a restart.
func (j *Journal) LogPrepare(tx uuid.UUID, xid []byte) error {
	return j.write(Entry{Kind: KindPrepare, Tx: tx, Value: xid})
}

// LogCommit closes tx as committed.
func (j *Journal) LogCommit(tx uuid.UUID) error {
	return j.write(Entry{Kind: KindCommit, Tx: tx})
}

// LogRollback closes tx as rolled back.
func (j *Journal) LogRollback(tx uuid.UUID) error {
	return j.write(Entry{Kind: KindRollback, Tx: tx})
}

// Entries returns the operations logged for the open transaction tx.
func (j *Journal) Entries(tx uuid.UUID) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	t, ok := j.open[tx]
	if !ok {
		return nil
	}
	return append([]Entry(nil), t.Entries...)
}

// Pending returns the open and prepared transactions in the order they began.
func (j *Journal) Pending() []Transaction {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Transaction, 0, len(j.order))
	for _, id := range j.order {
		t := j.open[id]
		out = append(out, Transaction{
			ID:       t.ID,
			Entries:  append([]Entry(nil), t.Entries...),
			Prepared: t.Prepared,
			Xid:      t.Xid,
		})
	}
	return out
}

// Size returns the file size in bytes, or 0 for a memory journal.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// IsPersistent reports whether the journal is file backed.
func (j *Journal) IsPersistent() bool { return j.path != "" }

// Close closes the journal file. Later writes return ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
