package storage

import "sync"

// MemoryStorage is an in-memory StringStorage used for tests and for
// running without persistence.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]string

	// FailWrites makes SetItem a silent no-op, simulating an unavailable
	// or full storage backend.
	FailWrites bool
}

// Compile-time interface check
var _ StringStorage = (*MemoryStorage)(nil)

// NewMemoryStorage creates empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

// GetItem returns the value for key and whether it was present.
func (s *MemoryStorage) GetItem(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// SetItem stores a value under key.
func (s *MemoryStorage) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return
	}
	s.entries[key] = value
}

// RemoveItem deletes a key.
func (s *MemoryStorage) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Keys returns a snapshot of the stored keys.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored entries.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
