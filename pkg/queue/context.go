package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/bft-labs/mulecore/pkg/journal"
)

// txContext is the queue-level view of a session: direct operations when
// auto-committing, staged ones inside a transaction.
type txContext interface {
	offer(ctx context.Context, q *queueInfo, item []byte, timeout time.Duration) (bool, error)
	untake(q *queueInfo, item []byte) error
	poll(ctx context.Context, q *queueInfo, timeout time.Duration) ([]byte, error)
	peek(q *queueInfo) ([]byte, error)
	size(q *queueInfo) int
	clear(q *queueInfo) error
	dispose(q *queueInfo) error
}

// autoCommit applies every operation to the queue immediately.
type autoCommit struct {
	m *Manager
}

func (a autoCommit) offer(ctx context.Context, q *queueInfo, item []byte, timeout time.Duration) (bool, error) {
	ok, err := a.m.offerStore(ctx, q, item, timeout)
	if ok {
		a.m.metrics.offer(q.name)
	}
	return ok, err
}

func (a autoCommit) untake(q *queueInfo, item []byte) error {
	return q.putFirst(item, a.m.metrics)
}

func (a autoCommit) poll(ctx context.Context, q *queueInfo, timeout time.Duration) ([]byte, error) {
	item, err := a.m.pollStore(ctx, q, timeout, nil)
	if item != nil {
		a.m.metrics.poll(q.name)
	}
	return item, err
}

func (a autoCommit) peek(q *queueInfo) ([]byte, error) { return q.peek() }
func (a autoCommit) size(q *queueInfo) int             { return q.size() }

func (a autoCommit) clear(q *queueInfo) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Clear(); err != nil {
		return fmt.Errorf("queue %q: %w", q.name, err)
	}
	q.signalLocked(a.m.metrics)
	return nil
}

func (a autoCommit) dispose(q *queueInfo) error { return a.m.disposeQueue(q) }

// stagedItem is an offer or untake waiting for commit.
type stagedItem struct {
	value []byte
	first bool
}

// transaction stages queue operations until commit or rollback. With a
// journal every operation is logged before it is staged; without one the
// transaction only lives in memory. An XA branch joined from several
// sessions is shared between goroutines: mu guards the fields below it and
// is held for the whole of each operation, including any wait for room or
// items, so completing a branch waits for in-flight operations.
type transaction struct {
	m       *Manager
	id      uuid.UUID
	journal *journal.Journal

	mu sync.Mutex
	// touched lists queue names in first-use order.
	touched []string
	queues  map[string]*queueInfo
	added   map[string][]stagedItem
	removed map[string][][]byte
	// disposed holds queues to dispose at commit.
	disposed map[string]bool

	xid          *Xid
	prepared     bool
	rollbackOnly bool
	done         bool
}

func newTransaction(m *Manager, j *journal.Journal) (*transaction, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("queue: transaction id: %w", err)
	}
	return newTransactionWithID(m, id, j), nil
}

func newTransactionWithID(m *Manager, id uuid.UUID, j *journal.Journal) *transaction {
	return &transaction{
		m:        m,
		id:       id,
		journal:  j,
		queues:   make(map[string]*queueInfo),
		added:    make(map[string][]stagedItem),
		removed:  make(map[string][][]byte),
		disposed: make(map[string]bool),
	}
}

func (t *transaction) touchLocked(q *queueInfo) {
	if _, ok := t.queues[q.name]; !ok {
		t.queues[q.name] = q
		t.touched = append(t.touched, q.name)
	}
}

func (t *transaction) checkLocked() error {
	if t.done {
		return ErrTransactionEnded
	}
	if t.prepared {
		return errAlreadyPrepared
	}
	return nil
}

func (t *transaction) isPrepared() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prepared
}

func (t *transaction) markRollbackOnly() {
	t.mu.Lock()
	t.rollbackOnly = true
	t.mu.Unlock()
}

// isEmptyLocked reports whether the transaction has anything to commit or undo.
func (t *transaction) isEmptyLocked() bool {
	for _, name := range t.touched {
		if len(t.added[name]) > 0 || len(t.removed[name]) > 0 || t.disposed[name] {
			return false
		}
	}
	return true
}

func (t *transaction) offer(ctx context.Context, q *queueInfo, item []byte, timeout time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkLocked(); err != nil {
		return false, err
	}
	ok, err := t.m.waitForRoom(ctx, q, timeout, len(t.added[q.name]))
	if !ok || err != nil {
		return ok, err
	}
	if t.journal != nil {
		if err := t.journal.LogAdd(t.id, q.name, item); err != nil {
			return false, err
		}
	}
	t.touchLocked(q)
	t.added[q.name] = append(t.added[q.name], stagedItem{value: item})
	return true, nil
}

func (t *transaction) untake(q *queueInfo, item []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkLocked(); err != nil {
		return err
	}
	if t.journal != nil {
		if err := t.journal.LogAddFirst(t.id, q.name, item); err != nil {
			return err
		}
	}
	t.touchLocked(q)
	t.added[q.name] = append(t.added[q.name], stagedItem{value: item, first: true})
	return nil
}

// poll takes back the most recently staged item of q, if any, before
// taking the head of the queue itself. The remove is journaled before the
// head leaves the store, so a crash in between redelivers the item rather
// than losing it.
func (t *transaction) poll(ctx context.Context, q *queueInfo, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pollLocked(ctx, q, timeout)
}

func (t *transaction) pollLocked(ctx context.Context, q *queueInfo, timeout time.Duration) ([]byte, error) {
	if err := t.checkLocked(); err != nil {
		return nil, err
	}
	if item, ok, err := t.consumeStagedLocked(q); ok || err != nil {
		return item, err
	}

	var logRemove func([]byte) error
	if t.journal != nil {
		logRemove = func(head []byte) error {
			return t.journal.LogRemove(t.id, q.name, head)
		}
	}
	item, err := t.m.pollStore(ctx, q, timeout, logRemove)
	if err != nil || item == nil {
		return nil, err
	}
	t.touchLocked(q)
	t.removed[q.name] = append(t.removed[q.name], item)
	return item, nil
}

// consumeStagedLocked takes back the most recently staged item of q.
func (t *transaction) consumeStagedLocked(q *queueInfo) ([]byte, bool, error) {
	staged := t.added[q.name]
	if len(staged) == 0 {
		return nil, false, nil
	}
	if t.journal != nil {
		if err := t.journal.LogConsume(t.id, q.name); err != nil {
			return nil, false, err
		}
	}
	last := staged[len(staged)-1]
	t.added[q.name] = staged[:len(staged)-1]
	return last.value, true, nil
}

func (t *transaction) peek(q *queueInfo) ([]byte, error) {
	t.mu.Lock()
	if err := t.checkLocked(); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if staged := t.added[q.name]; len(staged) > 0 {
		item := staged[len(staged)-1].value
		t.mu.Unlock()
		return item, nil
	}
	t.mu.Unlock()
	return q.peek()
}

func (t *transaction) size(q *queueInfo) int {
	t.mu.Lock()
	staged := len(t.added[q.name])
	t.mu.Unlock()
	return q.size() + staged
}

// clear drops staged items of q and takes every committed one, so that
// rollback brings them back.
func (t *transaction) clear(q *queueInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		item, err := t.pollLocked(context.Background(), q, 0)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
	}
}

// dispose schedules q for disposal at commit. Work staged on q by this
// transaction, before or after, is dropped with it; rollback keeps the queue.
func (t *transaction) dispose(q *queueInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkLocked(); err != nil {
		return err
	}
	t.touchLocked(q)
	t.disposed[q.name] = true
	return nil
}

// commit makes staged items visible, then marks the transaction committed.
func (t *transaction) commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commitLocked()
}

func (t *transaction) commitLocked() error {
	if t.done {
		return ErrTransactionEnded
	}
	t.done = true
	for _, name := range t.touched {
		q := t.queues[name]
		if t.disposed[name] || q.isDisposed() {
			continue
		}
		for _, s := range t.added[name] {
			var err error
			if s.first {
				err = q.putFirst(s.value, t.m.metrics)
			} else {
				err = q.putLast(s.value, t.m.metrics)
				t.m.metrics.offer(name)
			}
			if err != nil {
				return err
			}
		}
		for range t.removed[name] {
			t.m.metrics.poll(name)
		}
	}
	if t.journal != nil {
		if err := t.journal.LogCommit(t.id); err != nil {
			return err
		}
	}
	t.m.metrics.transaction(OutcomeCommit)

	var errs []error
	for _, name := range t.touched {
		if t.disposed[name] {
			errs = append(errs, t.m.disposeQueue(t.queues[name]))
		}
	}
	return errors.Join(errs...)
}

// rollback discards staged items and puts taken items back at the head of
// their queues in their original order.
func (t *transaction) rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbackLocked()
}

func (t *transaction) rollbackLocked() error {
	if t.done {
		return ErrTransactionEnded
	}
	t.done = true
	for _, name := range t.touched {
		q := t.queues[name]
		if q.isDisposed() {
			continue
		}
		removed := t.removed[name]
		for i := len(removed) - 1; i >= 0; i-- {
			if err := q.putFirst(removed[i], t.m.metrics); err != nil {
				return err
			}
		}
	}
	if t.journal != nil {
		if err := t.journal.LogRollback(t.id); err != nil {
			return err
		}
	}
	t.m.metrics.transaction(OutcomeRollback)
	return nil
}
