package queuestore

import "sync"

// MemoryStore is a slice-backed Store.
type MemoryStore struct {
	name string

	mu    sync.Mutex
	items [][]byte
}

// NewMemoryStore creates an empty in-memory store for queue name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name}
}

// Name returns the queue name.
func (m *MemoryStore) Name() string { return m.name }

// IsPersistent reports false.
func (m *MemoryStore) IsPersistent() bool { return false }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// PutLast appends item.
func (m *MemoryStore) PutLast(item []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

// PutFirst prepends item.
func (m *MemoryStore) PutFirst(item []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([][]byte{item}, m.items...)
	return nil
}

// PollFirst removes and returns the head item, or nil when empty.
func (m *MemoryStore) PollFirst() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, nil
	}
	item := m.items[0]
	m.items[0] = nil
	m.items = m.items[1:]
	return item, nil
}

// PeekFirst returns the head item, or nil when empty.
func (m *MemoryStore) PeekFirst() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, nil
	}
	return m.items[0], nil
}

// RemoveIf removes the first item matched by match.
func (m *MemoryStore) RemoveIf(match func([]byte) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if match(item) {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Size returns the number of items.
func (m *MemoryStore) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Dispose drops every item.
func (m *MemoryStore) Dispose() error { return m.Clear() }

// Clear drops every item.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	return nil
}
