package objectstore

import "sync"

// MemoryStrategy keeps records in memory. Nothing survives the process.
type MemoryStrategy struct {
	mu     sync.RWMutex
	queues map[string]map[string][]byte
}

// NewMemoryStrategy creates an empty in-memory strategy.
func NewMemoryStrategy() *MemoryStrategy {
	return &MemoryStrategy{queues: make(map[string]map[string][]byte)}
}

func (m *MemoryStrategy) Open() error        { return nil }
func (m *MemoryStrategy) Close() error       { return nil }
func (m *MemoryStrategy) IsPersistent() bool { return false }

func (m *MemoryStrategy) Store(queue, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queue]
	if !ok {
		q = make(map[string][]byte)
		m.queues[queue] = q
	}
	q[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStrategy) Remove(queue, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queue]
	if !ok {
		return ErrNotFound
	}
	if _, ok := q[key]; !ok {
		return ErrNotFound
	}
	delete(q, key)
	return nil
}

func (m *MemoryStrategy) Load(queue, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.queues[queue][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStrategy) Restore() ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for queue, q := range m.queues {
		for key, v := range q {
			out = append(out, Record{Queue: queue, Key: key, Value: append([]byte(nil), v...)})
		}
	}
	sortRecords(out)
	return out, nil
}
