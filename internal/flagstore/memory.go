package flagstore

import "sync"

// MemoryStore is an in-memory Store for tests and for platforms without a
// writable data directory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	flags map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]string)}
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = value
	return nil
}

func (m *MemoryStore) Get(key, def string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value, ok := m.flags[key]; ok {
		return value, nil
	}
	return def, nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, key)
	return nil
}
