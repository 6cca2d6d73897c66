// Package queue is a transactional queue manager: named FIFO queues with
// blocking and timed operations, local and XA transactions, and pluggable
// durability.
//
// # Usage
//
//	qm := queue.NewManager(
//	    queue.WithDataDir(dir),
//	    queue.WithJournal(true),
//	    queue.WithLogger(logger),
//	)
//	qm.SetDefaultQueueConfiguration(queue.Configuration{Capacity: 100, Persistent: true})
//	if err := qm.Initialise(); err != nil { ... }
//	if err := qm.Start(); err != nil { ... }
//	defer qm.Dispose()
//	defer qm.Stop()
//
//	s := qm.Session()
//	q, _ := s.Queue("orders")
//
//	_ = s.Begin()
//	_ = q.Put(ctx, []byte("order-1"))
//	_ = s.Commit()
//
//	item, err := q.Poll(ctx, time.Second) // nil on timeout
//
// # Timeouts and cancellation
//
// Offer and Poll take a timeout: 0 never waits and Forever waits without
// limit. Running out of time is not an error: Offer reports false and Poll
// returns a nil item. A cancelled context ends the wait with
// ErrInterrupted unless the manager is stopping, in which case waiting
// operations give up quietly.
//
// # Transactions
//
// Inside a transaction, offers and untakes are staged and invisible to
// other sessions until commit. Items polled from the queue are removed at
// once and restored to the head of their queue on rollback. Staged items
// are consumed last-in first-out by Poll and Peek in the same transaction:
// the item staged most recently is returned first, unlike the FIFO order
// of committed items.
//
// With the journal enabled every staged operation is logged before it
// takes effect. At start, transactions left open by a crash are rolled back
// and prepared XA transactions are kept for the coordinator to complete.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package queue
