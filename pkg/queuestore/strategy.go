package queuestore

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/bft-labs/mulecore/pkg/objectstore"
)

// keyOrigin is the first sequence number handed out. PutFirst counts down
// from it and PutLast counts up, so key order is queue order.
const keyOrigin uint64 = 1 << 63

type keyed struct {
	key   string
	value []byte
}

// StrategyStore keeps one record per item in an objectstore.Strategy.
type StrategyStore struct {
	name     string
	strategy objectstore.Strategy

	mu    sync.Mutex
	items []keyed
	head  uint64
	tail  uint64
}

// OpenStrategyStore loads the records of queue name from strategy.
func OpenStrategyStore(name string, strategy objectstore.Strategy) (*StrategyStore, error) {
	s := &StrategyStore{name: name, strategy: strategy, head: keyOrigin, tail: keyOrigin}
	records, err := strategy.Restore()
	if err != nil {
		return nil, fmt.Errorf("queuestore: restore %s: %w", name, err)
	}
	for _, r := range records {
		if r.Queue != name {
			continue
		}
		seq, err := strconv.ParseUint(r.Key, 10, 64)
		if err != nil {
			continue
		}
		if seq < s.head {
			s.head = seq
		}
		if seq >= s.tail {
			s.tail = seq + 1
		}
		s.items = append(s.items, keyed{key: r.Key, value: r.Value})
	}
	if len(s.items) == 0 {
		s.head, s.tail = keyOrigin, keyOrigin
	}
	return s, nil
}

func formatKey(seq uint64) string { return fmt.Sprintf("%020d", seq) }

// Name returns the queue name.
func (s *StrategyStore) Name() string { return s.name }

// IsPersistent defers to the strategy.
func (s *StrategyStore) IsPersistent() bool { return s.strategy.IsPersistent() }

// Close is a no-op; records belong to the strategy.
func (s *StrategyStore) Close() error { return nil }

// PutLast stores item under a new key at the tail.
func (s *StrategyStore) PutLast(item []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := formatKey(s.tail)
	if err := s.strategy.Store(s.name, key, item); err != nil {
		return err
	}
	s.tail++
	s.items = append(s.items, keyed{key: key, value: item})
	return nil
}

// PutFirst stores item under a new key at the head.
func (s *StrategyStore) PutFirst(item []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head--
	key := formatKey(s.head)
	if err := s.strategy.Store(s.name, key, item); err != nil {
		s.head++
		return err
	}
	s.items = append([]keyed{{key: key, value: item}}, s.items...)
	return nil
}

// PollFirst removes and returns the head record.
func (s *StrategyStore) PollFirst() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, nil
	}
	head := s.items[0]
	if err := s.strategy.Remove(s.name, head.key); err != nil {
		return nil, err
	}
	s.items = s.items[1:]
	return head.value, nil
}

// PeekFirst returns the head record without removing it.
func (s *StrategyStore) PeekFirst() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, nil
	}
	return s.items[0].value, nil
}

// RemoveIf removes the first record matched by match.
func (s *StrategyStore) RemoveIf(match func([]byte) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if !match(it.value) {
			continue
		}
		if err := s.strategy.Remove(s.name, it.key); err != nil {
			return false, err
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		return true, nil
	}
	return false, nil
}

// Size returns the number of tracked keys.
func (s *StrategyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Dispose removes the queue's records from the strategy.
func (s *StrategyStore) Dispose() error { return s.Clear() }

// Clear removes every record from the strategy.
func (s *StrategyStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if err := s.strategy.Remove(s.name, it.key); err != nil {
			return err
		}
	}
	s.items = nil
	s.head, s.tail = keyOrigin, keyOrigin
	return nil
}
