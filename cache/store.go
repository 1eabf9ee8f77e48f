package cache

import "sync"

// CacheEntry is one cached payload plus the moment it was written
// (unix nanoseconds). Freshness is decided by the reader.
type CacheEntry struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// Store is the backing key/value map for a TTLCache
type Store interface {
	Get(key string) (CacheEntry, bool)
	Set(key string, entry CacheEntry) error
	Delete(key string) error
	Clear() error
	Len() int
	Range(fn func(key string, entry CacheEntry) bool)
}

// MemoryStore keeps entries in a sync.Map
type MemoryStore struct {
	entries sync.Map
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(key string) (CacheEntry, bool) {
	v, ok := m.entries.Load(key)
	if !ok {
		return CacheEntry{}, false
	}
	return v.(CacheEntry), true
}

func (m *MemoryStore) Set(key string, entry CacheEntry) error {
	m.entries.Store(key, entry)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.entries.Delete(key)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.entries.Range(func(key, _ interface{}) bool {
		m.entries.Delete(key)
		return true
	})
	return nil
}

func (m *MemoryStore) Len() int {
	n := 0
	m.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func (m *MemoryStore) Range(fn func(key string, entry CacheEntry) bool) {
	m.entries.Range(func(k, v interface{}) bool {
		return fn(k.(string), v.(CacheEntry))
	})
}
