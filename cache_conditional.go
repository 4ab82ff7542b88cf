package bdsmlr

import (
	"encoding/json"
	"net/http"
	"time"
)

// conditionalCache backs the HTTP-conditional strategy. It stores payloads
// together with their validator headers; before a request the validators are
// attached as If-None-Match / If-Modified-Since, and a 304 serves the cached
// payload while sliding its timestamp forward. Payloads are stored only when
// the response carried at least one validator.
//
// The executor also harvests validators into this cache on every successful
// call regardless of the caller's chosen strategy: validators are free side
// information.
type conditionalCache struct {
	store *boundedStore

	now func() time.Time
}

func newConditionalCache(store *boundedStore) *conditionalCache {
	return &conditionalCache{store: store, now: time.Now}
}

// Validators returns the stored validator headers for key.
func (c *conditionalCache) Validators(key string) (etag, lastModified string, ok bool) {
	e, found := c.store.get(key)
	if !found {
		return "", "", false
	}
	if e.ETag == "" && e.LastModified == "" {
		return "", "", false
	}
	return e.ETag, e.LastModified, true
}

// Payload returns the cached entry for key, if any.
func (c *conditionalCache) Payload(key string) (*cacheEntry, bool) {
	return c.store.get(key)
}

// Touch slides the entry's timestamp to now after a 304, extending its life
// without re-parsing a body.
func (c *conditionalCache) Touch(key string) bool {
	return c.store.update(key, func(e *cacheEntry) {
		e.StoredAt = c.now()
	})
}

// Harvest stores payload + validators when the response header carries at
// least one validator. A no-validator response leaves the cache untouched.
func (c *conditionalCache) Harvest(key string, payload json.RawMessage, header http.Header) bool {
	etag := header.Get("ETag")
	lastModified := header.Get("Last-Modified")
	if etag == "" && lastModified == "" {
		return false
	}
	c.store.set(&cacheEntry{
		Key:          key,
		Payload:      payload,
		StoredAt:     c.now(),
		ETag:         etag,
		LastModified: lastModified,
	})
	return true
}

// attachConditionalHeaders decorates an outgoing request with the stored
// validators.
func attachConditionalHeaders(req *http.Request, etag, lastModified string) {
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
}
