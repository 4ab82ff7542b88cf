package bdsmlr

import (
	"encoding/json"

	"github.com/maypok86/otter/v2"
)

// OtterStore is a Store backed by an otter cache. Unlike MemoryStore it
// bounds its footprint: otter evicts under memory pressure using W-TinyLFU.
// Use it for long-running processes where the mirrored cache state may grow
// past what a plain map should hold. There is no TTL here; expiry policy
// stays with the cache strategies.
type OtterStore struct {
	cache *otter.Cache[string, json.RawMessage]
}

// NewOtterStore creates an otter-backed store holding at most maxEntries
// values.
func NewOtterStore(maxEntries int) *OtterStore {
	cache := otter.Must(&otter.Options[string, json.RawMessage]{
		MaximumSize: maxEntries,
	})
	return &OtterStore{cache: cache}
}

func (s *OtterStore) Get(key string) (json.RawMessage, bool) {
	entry, ok := s.cache.GetEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func (s *OtterStore) Set(key string, value json.RawMessage) {
	s.cache.Set(key, value)
}

func (s *OtterStore) Delete(key string) {
	s.cache.Invalidate(key)
}
