package queuestore

import "errors"

var ErrClosed = errors.New("queuestore: store closed")

// Store holds the items of one queue in FIFO order.
type Store interface {
	Name() string
	PutLast(item []byte) error
	PutFirst(item []byte) error
	// PollFirst removes and returns the head item, or nil when empty.
	PollFirst() ([]byte, error)
	// PeekFirst returns the head item without removing it, or nil when empty.
	PeekFirst() ([]byte, error)
	// RemoveIf removes the first item for which match returns true.
	RemoveIf(match func(item []byte) bool) (bool, error)
	Size() int
	Clear() error
	Close() error
	// Dispose drops every item, closes the store and deletes whatever
	// backs it. A disposed store cannot be reused.
	Dispose() error
	IsPersistent() bool
}
