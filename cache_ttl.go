package bdsmlr

import (
	"encoding/json"
	"time"
)

const (
	defaultCacheTTL = 5 * time.Minute

	// defaultNotFoundTTL bounds how long a false negative persists.
	defaultNotFoundTTL = time.Minute
)

// entryMeta carries the optional identity metadata attached on write.
type entryMeta struct {
	NotFound bool
	BlogIDs  []string
	Query    string
	Page     int
}

// ttlCache is the standard TTL strategy: serve if age ≤ TTL, otherwise miss.
// Not-found markers expire on their own shorter clock.
type ttlCache struct {
	store       *boundedStore
	ttl         time.Duration
	notFoundTTL time.Duration

	now func() time.Time
}

func newTTLCache(store *boundedStore, ttl, notFoundTTL time.Duration) *ttlCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if notFoundTTL <= 0 {
		notFoundTTL = defaultNotFoundTTL
	}
	return &ttlCache{store: store, ttl: ttl, notFoundTTL: notFoundTTL, now: time.Now}
}

// Get returns the entry when still within its TTL. ttlOverride replaces the
// default TTL when positive; not-found markers always use the shorter
// not-found TTL. Expired entries are dropped.
func (c *ttlCache) Get(key string, ttlOverride time.Duration) (*cacheEntry, bool) {
	e, ok := c.store.get(key)
	if !ok {
		return nil, false
	}

	limit := c.ttl
	if ttlOverride > 0 {
		limit = ttlOverride
	}
	if e.NotFound && c.notFoundTTL < limit {
		limit = c.notFoundTTL
	}

	if e.age(c.now()) > limit {
		c.store.delete(key)
		return nil, false
	}
	return e, true
}

// Set stores a payload with the current timestamp.
func (c *ttlCache) Set(key string, payload json.RawMessage, meta entryMeta) {
	c.store.set(&cacheEntry{
		Key:      key,
		Payload:  payload,
		StoredAt: c.now(),
		NotFound: meta.NotFound,
		BlogIDs:  meta.BlogIDs,
		Query:    meta.Query,
		Page:     meta.Page,
	})
}
