package bdsmlr

import (
	"encoding/json"
	"sync"
)

// Store is the persistent key-value collaborator shared by the token manager
// and the cache strategies. Values are opaque JSON blobs; all TTL and
// eviction policy lives in this package, never in the store.
type Store interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value json.RawMessage)
	Delete(key string)
}

// MemoryStore is the default Store: a mutex-guarded map. It provides session
// continuity only for the lifetime of the process; supply a disk- or
// otter-backed Store for anything longer lived.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryStore) Set(key string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// storeGetJSON unmarshals the value at key into v. Returns false on absence
// or decode failure; a corrupt persisted blob is treated as a miss.
func storeGetJSON(s Store, key string, v interface{}) bool {
	if s == nil {
		return false
	}
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// storeSetJSON marshals v and writes it at key. Marshal failures are dropped;
// the store is a mirror, never the source of truth for live state.
func storeSetJSON(s Store, key string, v interface{}) {
	if s == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Set(key, raw)
}
