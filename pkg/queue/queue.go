package queue

import (
	"context"
	"time"
)

// Queue is a session's handle on one named queue. Operations join the
// session's transaction when there is one.
type Queue struct {
	s    *Session
	info *queueInfo
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.info.name }

// Put appends item, waiting for room as long as it takes.
func (q *Queue) Put(ctx context.Context, item []byte) error {
	ok, err := q.Offer(ctx, item, Forever)
	if err != nil {
		return err
	}
	if !ok {
		return ErrShuttingDown
	}
	return nil
}

// Offer appends item, waiting up to timeout for room. It reports false when
// the queue stays full or the manager stops.
func (q *Queue) Offer(ctx context.Context, item []byte, timeout time.Duration) (bool, error) {
	return q.s.context().offer(ctx, q.info, item, timeout)
}

// Take removes the head item, waiting as long as it takes. It returns nil
// when the manager stops.
func (q *Queue) Take(ctx context.Context) ([]byte, error) {
	return q.Poll(ctx, Forever)
}

// Poll removes the head item, waiting up to timeout for one. It returns nil
// when none arrives in time.
func (q *Queue) Poll(ctx context.Context, timeout time.Duration) ([]byte, error) {
	return q.s.context().poll(ctx, q.info, timeout)
}

// Peek returns the head item without removing it, or nil when the queue is empty.
func (q *Queue) Peek() ([]byte, error) {
	return q.s.context().peek(q.info)
}

// Untake puts item back at the head of the queue.
func (q *Queue) Untake(item []byte) error {
	return q.s.context().untake(q.info, item)
}

// Size returns the committed size plus items staged by the session's transaction.
func (q *Queue) Size() int {
	return q.s.context().size(q.info)
}

// Clear removes every item.
func (q *Queue) Clear() error {
	return q.s.context().clear(q.info)
}

// Dispose deletes the queue together with its items and store files. Inside
// a transaction the queue is deleted at commit. The handle is unusable
// afterwards; Session.Queue returns a fresh, empty queue of the same name.
func (q *Queue) Dispose() error {
	return q.s.context().dispose(q.info)
}

// Capacity returns the configured capacity, 0 for unbounded.
func (q *Queue) Capacity() int {
	q.info.mu.Lock()
	defer q.info.mu.Unlock()
	return q.info.config.Capacity
}

// IsPersistent reports whether the queue's items survive a restart.
func (q *Queue) IsPersistent() bool {
	return q.info.store.IsPersistent()
}
