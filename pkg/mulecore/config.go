package mulecore

import (
	"fmt"
	"time"

	"github.com/bft-labs/mulecore/pkg/queue"
	"github.com/bft-labs/mulecore/pkg/queuestore"
)

// DefaultID identifies a container when Config.ID is empty.
const DefaultID = "mulecore"

// Config configures a Container.
type Config struct {
	// ID names the container in logs, errors and notifications.
	// Default: "mulecore"
	ID string

	// DataDir holds persistent queue files and the journal. Without it
	// every queue lives in memory.
	DataDir string

	// Journal logs local transactions so they can be rolled back after a
	// crash. XA transactions are always journalled.
	Journal bool

	// JournalSync syncs every journal record instead of only transaction
	// boundaries.
	JournalSync bool

	// MaxFileSize is the rotation threshold of persistent queue files.
	// Default: 1 MiB
	MaxFileSize int64

	// ShutdownTimeout bounds how long stopping waits for blocked queue callers.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// DefaultQueue applies to queues without an entry in Queues.
	DefaultQueue queue.Configuration

	// Queues configures individual queues by name.
	Queues map[string]queue.Configuration
}

// SetDefaults fills in zero values.
func (c *Config) SetDefaults() {
	if c.ID == "" {
		c.ID = DefaultID
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = queuestore.DefaultMaxFileSize
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = queue.DefaultShutdownTimeout
	}
}

// Validate rejects invalid queue configurations.
func (c Config) Validate() error {
	if err := c.DefaultQueue.Validate(); err != nil {
		return fmt.Errorf("default queue: %w", err)
	}
	for name, q := range c.Queues {
		if name == "" {
			return queue.ErrEmptyQueueName
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("queue %q: %w", name, err)
		}
	}
	return nil
}
