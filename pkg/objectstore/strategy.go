package objectstore

import (
	"errors"
	"sort"
)

var (
	ErrNotFound = errors.New("objectstore: record not found")
	ErrClosed   = errors.New("objectstore: strategy closed")
)

// Record is one stored value.
type Record struct {
	Queue string
	Key   string
	Value []byte
}

// Strategy persists queue payloads. Implementations are safe for
// concurrent use.
type Strategy interface {
	Open() error
	Store(queue, key string, value []byte) error
	Remove(queue, key string) error
	Load(queue, key string) ([]byte, error)
	// Restore returns every stored record, grouped by queue and ordered by key.
	Restore() ([]Record, error)
	Close() error
	IsPersistent() bool
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Queue != records[j].Queue {
			return records[i].Queue < records[j].Queue
		}
		return records[i].Key < records[j].Key
	})
}
