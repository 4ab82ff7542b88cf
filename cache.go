package bdsmlr

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// defaultCacheMaxEntries caps each strategy's store.
const defaultCacheMaxEntries = 200

// cacheEntry is the generic shape shared across strategies. Strategy-specific
// metadata rides along as optional fields; unused fields stay zero.
type cacheEntry struct {
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"storedAt"`

	// not-found markers persist for a materially shorter TTL than real
	// payloads, bounding how long a false negative can live.
	NotFound bool `json:"notFound,omitempty"`

	// SWR metadata.
	Revalidating   bool   `json:"revalidating,omitempty"`
	RevalidationID string `json:"revalidationId,omitempty"`

	// HTTP-conditional validators.
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`

	// Domain-cache identity fields for targeted invalidation.
	BlogIDs []string `json:"blogIds,omitempty"`
	Query   string   `json:"query,omitempty"`
	Page    int      `json:"page,omitempty"`
}

func (e *cacheEntry) age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// boundedStore holds one strategy's entries: a capped map with
// oldest-half-on-overflow eviction, optionally mirrored into the persistent
// Store under cache/<name>/.
type boundedStore struct {
	mu      sync.Mutex
	name    string
	max     int
	entries map[string]*cacheEntry

	persist Store
	metrics *MetricsCollector

	now func() time.Time
}

func newBoundedStore(name string, max int, persist Store) *boundedStore {
	if max <= 0 {
		max = defaultCacheMaxEntries
	}
	s := &boundedStore{
		name:    name,
		max:     max,
		entries: make(map[string]*cacheEntry),
		persist: persist,
		now:     time.Now,
	}
	s.load()
	return s
}

func (s *boundedStore) storageKey(key string) string {
	return "cache/" + s.name + "/" + key
}

func (s *boundedStore) indexKey() string {
	return "cache/" + s.name + "/index"
}

// load restores mirrored entries from the persistent store.
func (s *boundedStore) load() {
	var keys []string
	if !storeGetJSON(s.persist, s.indexKey(), &keys) {
		return
	}
	for _, key := range keys {
		var e cacheEntry
		if storeGetJSON(s.persist, s.storageKey(key), &e) && e.Key == key {
			s.entries[key] = &e
		}
	}
	// A cap lowered between runs still binds after restore.
	for len(s.entries) > s.max {
		s.evictOldestHalfLocked()
	}
}

func (s *boundedStore) persistIndex() {
	if s.persist == nil {
		return
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	storeSetJSON(s.persist, s.indexKey(), keys)
}

// get returns a snapshot of the entry at key. Callers never hold the live
// struct, so a concurrent update cannot race their reads.
func (s *boundedStore) get(key string) (*cacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// set inserts an entry, evicting the oldest half first when the store is at
// capacity.
func (s *boundedStore) set(e *cacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.Key]; !exists && len(s.entries) >= s.max {
		s.evictOldestHalfLocked()
	}
	s.entries[e.Key] = e
	storeSetJSON(s.persist, s.storageKey(e.Key), e)
	s.persistIndex()
	s.metrics.RecordCacheSize(s.name, len(s.entries))
}

// update applies fn to an existing entry under the lock and mirrors the
// result. Returns false when the key is absent. Only the map references the
// live entry; readers hold snapshots from get.
func (s *boundedStore) update(key string, fn func(*cacheEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	fn(e)
	storeSetJSON(s.persist, s.storageKey(key), e)
	return true
}

func (s *boundedStore) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	if s.persist != nil {
		s.persist.Delete(s.storageKey(key))
	}
	s.persistIndex()
	s.metrics.RecordCacheSize(s.name, len(s.entries))
}

func (s *boundedStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if s.persist != nil {
			s.persist.Delete(s.storageKey(key))
		}
	}
	s.entries = make(map[string]*cacheEntry)
	s.persistIndex()
	s.metrics.RecordCacheSize(s.name, 0)
}

func (s *boundedStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictOldestHalfLocked removes the oldest half of the entries by StoredAt.
// Caller holds the lock.
func (s *boundedStore) evictOldestHalfLocked() {
	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, aged{key: k, storedAt: e.StoredAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	evict := len(all) / 2
	if evict == 0 {
		evict = 1
	}
	for _, a := range all[:evict] {
		delete(s.entries, a.key)
		if s.persist != nil {
			s.persist.Delete(s.storageKey(a.key))
		}
	}
	s.persistIndex()
}

// invalidateBlogs removes every entry whose blog-id set intersects ids.
// Returns the number of entries dropped. Used after a mutating action
// changes upstream data for those blogs.
func (s *boundedStore) invalidateBlogs(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, e := range s.entries {
		hit := false
		for _, id := range e.BlogIDs {
			if _, ok := want[id]; ok {
				hit = true
				break
			}
		}
		if hit {
			delete(s.entries, key)
			if s.persist != nil {
				s.persist.Delete(s.storageKey(key))
			}
			dropped++
		}
	}
	if dropped > 0 {
		s.persistIndex()
		s.metrics.RecordCacheSize(s.name, len(s.entries))
	}
	return dropped
}
