package bdsmlr

import (
	"encoding/json"
	"time"
)

// defaultStaleWindow is how long a last-good response remains servable as an
// error fallback. Deliberately much longer than the standard TTL: stale data
// beats an error page during an outage.
const defaultStaleWindow = time.Hour

// staleCache backs the stale-if-error strategy: the live fetch always runs
// first; only when it fails with a transient error does the façade consult
// this cache. Every successful live response is written back.
type staleCache struct {
	store  *boundedStore
	window time.Duration

	now func() time.Time
}

func newStaleCache(store *boundedStore, window time.Duration) *staleCache {
	if window <= 0 {
		window = defaultStaleWindow
	}
	return &staleCache{store: store, window: window, now: time.Now}
}

// Get returns the entry while it is still within the stale-serving window.
func (c *staleCache) Get(key string, windowOverride time.Duration) (*cacheEntry, bool) {
	e, ok := c.store.get(key)
	if !ok {
		return nil, false
	}
	window := c.window
	if windowOverride > 0 {
		window = windowOverride
	}
	if e.age(c.now()) > window {
		c.store.delete(key)
		return nil, false
	}
	return e, true
}

// Set stores a successful live response.
func (c *staleCache) Set(key string, payload json.RawMessage, meta entryMeta) {
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
