package bdsmlr

import (
	"context"
	"encoding/json"
	"time"
)

// CacheStrategy selects how a read is cached.
type CacheStrategy string

const (
	// CacheNone always goes to the network.
	CacheNone CacheStrategy = "none"

	// CacheTTL serves entries younger than the TTL, otherwise refetches.
	CacheTTL CacheStrategy = "ttl"

	// CacheSWR serves stale entries immediately while refreshing them in the
	// background.
	CacheSWR CacheStrategy = "swr"

	// CacheStaleIfError fetches live first and falls back to the last good
	// response only on transient failure.
	CacheStaleIfError CacheStrategy = "stale-if-error"

	// CacheConditional revalidates with If-None-Match / If-Modified-Since and
	// reuses the cached body on 304.
	CacheConditional CacheStrategy = "conditional"
)

// RequestOptions tune a single call through the façade.
type RequestOptions struct {
	Cache     CacheStrategy
	SkipCache bool

	// PartialRecovery enables truncated-body salvage on endpoints that
	// support it.
	PartialRecovery bool

	// TTL overrides the default TTL (TTL strategy).
	TTL time.Duration

	// SWR window overrides.
	FreshTTL time.Duration
	StaleTTL time.Duration
	MaxAge   time.Duration

	// StaleWindow overrides the stale-if-error serving window.
	StaleWindow time.Duration

	// meta tags stored entries for targeted invalidation.
	meta entryMeta

	// storeFilter, when set, must return true for a payload to be cached.
	storeFilter func(payload json.RawMessage) bool
}

// Meta describes where a result came from and what state it was in.
type Meta struct {
	FromCache    bool
	IsFresh      bool
	IsStale      bool
	Revalidating bool
	IsPartial    bool
	NotModified  bool

	CachedAt      time.Time
	BytesReceived int64
	Items         int
	Attempts      int
}

// Result is the façade's envelope: the raw payload plus cache provenance.
// Callers that only want the data can ignore Meta entirely.
type Result struct {
	Data json.RawMessage
	Meta Meta
}

// Do performs an API call with the endpoint's default options.
func (c *Client) Do(ctx context.Context, endpoint Endpoint, body map[string]interface{}) (*Result, error) {
	return c.DoWithOptions(ctx, endpoint, body, RequestOptions{})
}

// DoWithOptions normalizes the body once, derives the deterministic request
// key, and dispatches to the selected caching strategy.
func (c *Client) DoWithOptions(ctx context.Context, endpoint Endpoint, body map[string]interface{}, opts RequestOptions) (*Result, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	normalized := NormalizeBody(endpoint, body)
	canonical, err := canonicalBody(normalized)
	if err != nil {
		return nil, &APIError{
			Kind:      ErrorKindValidation,
			Message:   "request body is not serializable",
			Cause:     err,
			Endpoint:  string(endpoint),
			Timestamp: time.Now(),
		}
	}
	key := requestKey(endpoint, canonical)

	execOpts := executeOptions{cacheKey: key}
	if opts.PartialRecovery {
		if field, ok := RecoveryField(endpoint); ok {
			execOpts.recoveryField = field
		}
	}

	strategy := opts.Cache
	if opts.SkipCache {
		strategy = CacheNone
	}

	switch strategy {
	case CacheTTL:
		return c.doTTL(ctx, endpoint, canonical, key, execOpts, opts)
	case CacheSWR:
		return c.doSWR(ctx, endpoint, canonical, key, execOpts, opts)
	case CacheStaleIfError:
		return c.doStaleIfError(ctx, endpoint, canonical, key, execOpts, opts)
	case CacheConditional:
		return c.doConditional(ctx, endpoint, canonical, key, execOpts, opts)
	default:
		res, err := c.execute(ctx, endpoint, canonical, execOpts)
		if err != nil {
			return nil, err
		}
		return liveResult(res), nil
	}
}

func liveResult(res *rawResponse) *Result {
	return &Result{
		Data: res.Payload,
		Meta: Meta{
			IsFresh:       true,
			IsPartial:     res.Partial,
			BytesReceived: res.BytesReceived,
			Items:         res.Items,
			Attempts:      res.Attempts,
		},
	}
}

func cachedResult(e *cacheEntry, fresh bool) *Result {
	return &Result{
		Data: e.Payload,
		Meta: Meta{
			FromCache:    true,
			IsFresh:      fresh,
			IsStale:      !fresh,
			Revalidating: e.Revalidating,
			CachedAt:     e.StoredAt,
		},
	}
}

// cachedNotFound converts a stored not-found marker back into the error the
// original call produced, without touching the network.
func (c *Client) cachedNotFound(endpoint Endpoint) error {
	return &APIError{
		Kind:      ErrorKindNotFound,
		Message:   "resource not found",
		Endpoint:  string(endpoint),
		Timestamp: time.Now(),
	}
}

// storeAllowed applies the caller's cacheability filter. Partial payloads are
// never cached.
func storeAllowed(res *rawResponse, opts RequestOptions) bool {
	if res.Partial {
		return false
	}
	if opts.storeFilter != nil {
		return opts.storeFilter(res.Payload)
	}
	return true
}

func (c *Client) doTTL(ctx context.Context, endpoint Endpoint, body []byte, key string, execOpts executeOptions, opts RequestOptions) (*Result, error) {
	if e, ok := c.ttl.Get(key, opts.TTL); ok {
		c.metrics.RecordCacheHit(string(CacheTTL), "fresh")
		c.logCache("TTL cache hit", endpoint, key)
		if e.NotFound {
			return nil, c.cachedNotFound(endpoint)
		}
		return cachedResult(e, true), nil
	}
	c.metrics.RecordCacheMiss(string(CacheTTL))

	res, err := c.execute(ctx, endpoint, body, execOpts)
	if err != nil {
		if KindOf(err) == ErrorKindNotFound {
			meta := opts.meta
			meta.NotFound = true
			c.ttl.Set(key, nil, meta)
		}
		return nil, err
	}
	if storeAllowed(res, opts) {
		c.ttl.Set(key, res.Payload, opts.meta)
	}
	return liveResult(res), nil
}

func (c *Client) doSWR(ctx context.Context, endpoint Endpoint, body []byte, key string, execOpts executeOptions, opts RequestOptions) (*Result, error) {
	e, state := c.swr.Lookup(key, opts.FreshTTL, opts.StaleTTL, opts.MaxAge)

	// Not-found markers expire on the shorter clock regardless of windows.
	if e != nil && e.NotFound {
		if e.age(time.Now()) > c.notFoundTTL {
			c.swr.store.delete(key)
			e, state = nil, swrMiss
		} else {
			c.metrics.RecordCacheHit(string(CacheSWR), "fresh")
			return nil, c.cachedNotFound(endpoint)
		}
	}

	switch state {
	case swrFresh:
		c.metrics.RecordCacheHit(string(CacheSWR), "fresh")
		c.logCache("SWR fresh hit", endpoint, key)
		return cachedResult(e, true), nil

	case swrStale:
		c.metrics.RecordCacheHit(string(CacheSWR), "stale")
		c.logCache("SWR stale hit, revalidating", endpoint, key)
		revalidating := c.startRevalidation(endpoint, body, key, execOpts, opts)
		out := cachedResult(e, false)
		out.Meta.Revalidating = revalidating || e.Revalidating
		return out, nil

	default:
		c.metrics.RecordCacheMiss(string(CacheSWR))
		res, err := c.execute(ctx, endpoint, body, execOpts)
		if err != nil {
			if KindOf(err) == ErrorKindNotFound {
				meta := opts.meta
				meta.NotFound = true
				c.swr.Set(key, nil, meta)
			}
			return nil, err
		}
		if storeAllowed(res, opts) {
			c.swr.Set(key, res.Payload, opts.meta)
		}
		return liveResult(res), nil
	}
}

// startRevalidation claims the refresh marker for key and, when claimed, runs
// the refresh in the background. The completion is applied only while its
// generation id still owns the marker, so a superseded refresh cannot clobber
// newer data.
func (c *Client) startRevalidation(endpoint Endpoint, body []byte, key string, execOpts executeOptions, opts RequestOptions) bool {
	id, claimed := c.swr.BeginRevalidation(key)
	if !claimed {
		return false
	}

	c.revalidations.Add(1)
	go func() {
		defer c.revalidations.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*ConfiguredTimeout(endpoint))
		defer cancel()

		res, err := c.execute(ctx, endpoint, body, execOpts)
		if err != nil {
			c.swr.CompleteRevalidation(key, id, nil, err)
			return
		}
		if !storeAllowed(res, opts) {
			c.swr.CompleteRevalidation(key, id, nil, nil)
			return
		}
		c.swr.CompleteRevalidation(key, id, res.Payload, nil)
		c.metrics.RecordCacheHit(string(CacheSWR), "revalidated")
	}()
	return true
}

func (c *Client) doStaleIfError(ctx context.Context, endpoint Endpoint, body []byte, key string, execOpts executeOptions, opts RequestOptions) (*Result, error) {
	res, err := c.execute(ctx, endpoint, body, execOpts)
	if err == nil {
		if storeAllowed(res, opts) {
			c.stale.Set(key, res.Payload, opts.meta)
		}
		return liveResult(res), nil
	}

	// Only transient failures justify stale data. Terminal errors such as
	// not-found or auth propagate untouched.
	if !IsTransient(err) {
		return nil, err
	}
	e, ok := c.stale.Get(key, opts.StaleWindow)
	if !ok {
		c.metrics.RecordCacheMiss(string(CacheStaleIfError))
		return nil, err
	}
	c.metrics.RecordCacheHit(string(CacheStaleIfError), "stale")
	c.logCache("Serving stale after transient failure", endpoint, key)
	return cachedResult(e, false), nil
}

func (c *Client) doConditional(ctx context.Context, endpoint Endpoint, body []byte, key string, execOpts executeOptions, opts RequestOptions) (*Result, error) {
	if etag, lastModified, ok := c.conditional.Validators(key); ok {
		execOpts.etag = etag
		execOpts.lastModified = lastModified
	}

	res, err := c.execute(ctx, endpoint, body, execOpts)
	if err != nil {
		return nil, err
	}

	if res.NotModified {
		e, ok := c.conditional.Payload(key)
		if !ok || len(e.Payload) == 0 {
			// Validators without a body: retry unconditionally.
			execOpts.etag = ""
			execOpts.lastModified = ""
			res, err = c.execute(ctx, endpoint, body, execOpts)
			if err != nil {
				return nil, err
			}
			return liveResult(res), nil
		}
		c.conditional.Touch(key)
		c.metrics.RecordCacheHit(string(CacheConditional), "fresh")
		c.logCache("Validator matched, serving cached body", endpoint, key)
		out := cachedResult(e, true)
		out.Meta.NotModified = true
		out.Meta.Attempts = res.Attempts
		return out, nil
	}

	// Harvesting into the conditional store happened inside the executor.
	c.metrics.RecordCacheMiss(string(CacheConditional))
	return liveResult(res), nil
}

func (c *Client) logCache(msg string, endpoint Endpoint, key string) {
	if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
		c.logger.Debug(msg, "endpoint", endpoint, "key", key)
	}
}
