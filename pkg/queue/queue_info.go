package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/mulecore/pkg/queuestore"
)

// queueInfo is the manager's record of one named queue. changed is closed
// and replaced on every mutation so waiters can block on it.
type queueInfo struct {
	name string

	mu       sync.Mutex
	store    queuestore.Store
	config   Configuration
	changed  chan struct{}
	disposed bool
}

func newQueueInfo(name string, store queuestore.Store, config Configuration) *queueInfo {
	return &queueInfo{
		name:    name,
		store:   store,
		config:  config,
		changed: make(chan struct{}),
	}
}

// signalLocked wakes every waiter and refreshes the size gauge.
func (q *queueInfo) signalLocked(m *Metrics) {
	close(q.changed)
	q.changed = make(chan struct{})
	m.setSize(q.name, q.store.Size())
}

// hasRoomLocked reports whether extra more items fit.
func (q *queueInfo) hasRoomLocked(extra int) bool {
	return q.config.Capacity <= 0 || q.store.Size()+extra < q.config.Capacity
}

func (q *queueInfo) putLast(item []byte, m *Metrics) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return ErrQueueDisposed
	}
	if err := q.store.PutLast(item); err != nil {
		return fmt.Errorf("queue %q: %w", q.name, err)
	}
	q.signalLocked(m)
	return nil
}

func (q *queueInfo) putFirst(item []byte, m *Metrics) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return ErrQueueDisposed
	}
	if err := q.store.PutFirst(item); err != nil {
		return fmt.Errorf("queue %q: %w", q.name, err)
	}
	q.signalLocked(m)
	return nil
}

func (q *queueInfo) peek() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return nil, ErrQueueDisposed
	}
	item, err := q.store.PeekFirst()
	if err != nil {
		return nil, fmt.Errorf("queue %q: %w", q.name, err)
	}
	return item, nil
}

func (q *queueInfo) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Size()
}

func (q *queueInfo) isDisposed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.disposed
}

// dispose deletes the queue's store and releases its waiters.
func (q *queueInfo) dispose(m *Metrics) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return nil
	}
	q.disposed = true
	err := q.store.Dispose()
	close(q.changed)
	q.changed = make(chan struct{})
	m.setSize(q.name, 0)
	return err
}

func (q *queueInfo) setConfig(c Configuration, m *Metrics) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.config.Capacity = c.Capacity
	q.signalLocked(m)
}

// await calls try under the queue lock until it reports done, the timeout
// passes, the manager stops or ctx is cancelled. It reports whether try
// finished the operation.
func (m *Manager) await(ctx context.Context, q *queueInfo, timeout time.Duration, try func() (bool, error)) (bool, error) {
	stopping, ok := m.enter()
	if !ok {
		return false, nil
	}
	defer m.waiters.Done()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		q.mu.Lock()
		if q.disposed {
			q.mu.Unlock()
			return false, ErrQueueDisposed
		}
		done, err := try()
		if done || err != nil {
			q.mu.Unlock()
			return done, err
		}
		changed := q.changed
		q.mu.Unlock()

		if timeout == 0 {
			return false, nil
		}
		select {
		case <-changed:
		case <-expired:
			return false, nil
		case <-stopping:
			return false, nil
		case <-ctx.Done():
			if m.isStopping(stopping) {
				return false, nil
			}
			return false, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}
	}
}

// pollStore removes the head of q, waiting up to timeout for one to arrive.
// A non-nil logRemove is called with the head under the queue lock before
// the head is removed; its error leaves the head in place.
func (m *Manager) pollStore(ctx context.Context, q *queueInfo, timeout time.Duration, logRemove func([]byte) error) ([]byte, error) {
	var item []byte
	_, err := m.await(ctx, q, timeout, func() (bool, error) {
		if q.store.Size() == 0 {
			return false, nil
		}
		if logRemove != nil {
			head, err := q.store.PeekFirst()
			if err != nil {
				return false, fmt.Errorf("queue %q: %w", q.name, err)
			}
			if head == nil {
				return false, nil
			}
			if err := logRemove(head); err != nil {
				return false, err
			}
		}
		polled, err := q.store.PollFirst()
		if err != nil {
			return false, fmt.Errorf("queue %q: %w", q.name, err)
		}
		if polled == nil {
			return false, nil
		}
		item = polled
		q.signalLocked(m.metrics)
		return true, nil
	})
	return item, err
}

// waitForRoom waits until staged more items would fit in q.
func (m *Manager) waitForRoom(ctx context.Context, q *queueInfo, timeout time.Duration, staged int) (bool, error) {
	return m.await(ctx, q, timeout, func() (bool, error) {
		return q.hasRoomLocked(staged), nil
	})
}

// offerStore appends item to q once there is room.
func (m *Manager) offerStore(ctx context.Context, q *queueInfo, item []byte, timeout time.Duration) (bool, error) {
	return m.await(ctx, q, timeout, func() (bool, error) {
		if !q.hasRoomLocked(0) {
			return false, nil
		}
		if err := q.store.PutLast(item); err != nil {
			return false, fmt.Errorf("queue %q: %w", q.name, err)
		}
		q.signalLocked(m.metrics)
		return true, nil
	})
}
