package bdsmlr

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	defaultFreshTTL  = time.Minute
	defaultStaleTTL  = 10 * time.Minute
	defaultSWRMaxAge = time.Hour
)

// swrState classifies a stale-while-revalidate lookup.
type swrState int

const (
	swrMiss swrState = iota
	swrFresh
	swrStale
)

// swrCache implements stale-while-revalidate: entries within the fresh TTL
// serve directly; entries between fresh and stale TTL serve immediately
// while exactly one background revalidation refreshes them; entries past
// max age are misses. The revalidation marker carries a generation id so a
// stale revalidation completing after the marker moved on is discarded
// rather than overwriting newer data.
type swrCache struct {
	store    *boundedStore
	freshTTL time.Duration
	staleTTL time.Duration
	maxAge   time.Duration

	now func() time.Time
}

func newSWRCache(store *boundedStore, freshTTL, staleTTL, maxAge time.Duration) *swrCache {
	if freshTTL <= 0 {
		freshTTL = defaultFreshTTL
	}
	if staleTTL <= 0 {
		staleTTL = defaultStaleTTL
	}
	if maxAge <= 0 {
		maxAge = defaultSWRMaxAge
	}
	return &swrCache{store: store, freshTTL: freshTTL, staleTTL: staleTTL, maxAge: maxAge, now: time.Now}
}

// windows resolves per-call overrides against the cache defaults.
func (c *swrCache) windows(freshTTL, staleTTL, maxAge time.Duration) (time.Duration, time.Duration, time.Duration) {
	if freshTTL <= 0 {
		freshTTL = c.freshTTL
	}
	if staleTTL <= 0 {
		staleTTL = c.staleTTL
	}
	if maxAge <= 0 {
		maxAge = c.maxAge
	}
	if staleTTL < freshTTL {
		staleTTL = freshTTL
	}
	if maxAge < staleTTL {
		maxAge = staleTTL
	}
	return freshTTL, staleTTL, maxAge
}

// Lookup classifies the entry at key against the resolved windows.
func (c *swrCache) Lookup(key string, freshTTL, staleTTL, maxAge time.Duration) (*cacheEntry, swrState) {
	freshTTL, staleTTL, maxAge = c.windows(freshTTL, staleTTL, maxAge)

	e, ok := c.store.get(key)
	if !ok {
		return nil, swrMiss
	}

	age := e.age(c.now())
	switch {
	case age > maxAge:
		c.store.delete(key)
		return nil, swrMiss
	case age <= freshTTL:
		return e, swrFresh
	case age <= staleTTL:
		return e, swrStale
	default:
		// Past the stale window but within max age: still servable, still
		// revalidated in the background.
		return e, swrStale
	}
}

// BeginRevalidation claims the revalidation marker for key. Returns the
// generation id and true when this caller owns the refresh; false when a
// revalidation is already in flight.
func (c *swrCache) BeginRevalidation(key string) (string, bool) {
	id := uuid.NewString()
	claimed := false
	c.store.update(key, func(e *cacheEntry) {
		if e.Revalidating {
			return
		}
		e.Revalidating = true
		e.RevalidationID = id
		claimed = true
	})
	return id, claimed
}

// CompleteRevalidation finishes a background refresh. The result is applied
// only while the marker still matches id; a mismatch means a newer
// generation superseded this refresh and its completion is ignored. The
// marker clears on success and failure alike.
func (c *swrCache) CompleteRevalidation(key, id string, payload json.RawMessage, err error) {
	c.store.update(key, func(e *cacheEntry) {
		if e.RevalidationID != id {
			return
		}
		e.Revalidating = false
		e.RevalidationID = ""
		if err == nil && payload != nil {
			e.Payload = payload
			e.StoredAt = c.now()
		}
	})
}

// Set stores a payload with a cleared revalidation marker.
func (c *swrCache) Set(key string, payload json.RawMessage, meta entryMeta) {
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
