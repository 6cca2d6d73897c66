package queue

import "errors"

var (
	ErrInterrupted       = errors.New("queue: interrupted")
	ErrNotStarted        = errors.New("queue: manager not started")
	ErrShuttingDown      = errors.New("queue: manager shutting down")
	ErrShutdownTimeout   = errors.New("queue: shutdown timeout")
	ErrNoTransaction     = errors.New("queue: no transaction in progress")
	ErrTransactionActive = errors.New("queue: transaction already in progress")
	ErrTransactionEnded  = errors.New("queue: transaction already completed")
	ErrEmptyQueueName    = errors.New("queue: empty queue name")
	ErrInvalidCapacity   = errors.New("queue: capacity must not be negative")
	ErrQueueDisposed     = errors.New("queue: queue disposed")
)
