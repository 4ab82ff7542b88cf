package bdsmlr

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// defaultBaseURL is the production API host.
const defaultBaseURL = "https://api.bdsmlr.com"

// Client is the resilient API client. Construct with New; zero value is not
// usable. All methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	password   string

	store Store

	logger    Logger
	debug     *DebugConfig
	metrics   *MetricsCollector
	telemetry TelemetrySink

	retryPolicy *RetryPolicy
	timing      *TimingEstimator
	tokens      *tokenManager

	// cache tunables, resolved into the strategy caches during New.
	cacheMaxEntries int
	cacheTTL        time.Duration
	notFoundTTL     time.Duration
	swrFresh        time.Duration
	swrStale        time.Duration
	swrMaxAge       time.Duration
	staleWindow     time.Duration

	ttl         *ttlCache
	swr         *swrCache
	stale       *staleCache
	conditional *conditionalCache

	connectivity ConnectivitySignal
	online       atomic.Bool
	unsubscribe  func()

	queueCapacity int
	queue         *RetryQueue

	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker

	revalidations sync.WaitGroup

	validationError error

	// Namespaced operation groups.
	Posts      *PostsService
	Blogs      *BlogsService
	Graph      *GraphService
	Activity   *ActivityService
	Engagement *EngagementService
	Media      *MediaService
	Identity   *IdentityService
}

// New creates a configured client. Configuration problems do not fail
// construction; they surface as a Validation error on the first call and via
// ValidationError.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{},
		baseURL:      defaultBaseURL,
		retryPolicy:  NewRetryPolicy(),
		timing:       NewTimingEstimator(),
		notFoundTTL:  defaultNotFoundTTL,
		connectivity: alwaysOnline{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.telemetry == nil {
		c.telemetry = &loggerSink{logger: c.logger, metrics: c.metrics}
	}
	if c.debug == nil {
		c.debug = DefaultDebugConfig()
	}

	c.validationError = c.ValidateConfiguration()

	c.tokens = newTokenManager(c.store, c.login)
	c.tokens.metrics = c.metrics
	c.tokens.logger = c.logger
	c.tokens.debug = c.debug

	c.ttl = newTTLCache(newBoundedStore(string(CacheTTL), c.cacheMaxEntries, c.store), c.cacheTTL, c.notFoundTTL)
	c.swr = newSWRCache(newBoundedStore(string(CacheSWR), c.cacheMaxEntries, c.store), c.swrFresh, c.swrStale, c.swrMaxAge)
	c.stale = newStaleCache(newBoundedStore(string(CacheStaleIfError), c.cacheMaxEntries, c.store), c.staleWindow)
	c.conditional = newConditionalCache(newBoundedStore(string(CacheConditional), c.cacheMaxEntries, c.store))
	for _, bs := range []*boundedStore{c.ttl.store, c.swr.store, c.stale.store, c.conditional.store} {
		bs.metrics = c.metrics
	}

	c.queue = NewRetryQueue(c.queueCapacity)
	c.queue.metrics = c.metrics
	c.queue.logger = c.logger
	c.queue.debug = c.debug

	c.online.Store(c.connectivity.Online())
	c.unsubscribe = c.connectivity.Subscribe(c.onConnectivityChange)

	c.Posts = &PostsService{client: c}
	c.Blogs = &BlogsService{client: c}
	c.Graph = &GraphService{client: c}
	c.Activity = &ActivityService{client: c}
	c.Engagement = &EngagementService{client: c}
	c.Media = &MediaService{client: c}
	c.Identity = &IdentityService{client: c}

	return c
}

// NewFromEnv builds a client from environment configuration plus any
// overriding options.
func NewFromEnv(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := ConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return New(append(cfg.Options(), opts...)...), nil
}

// IsValid reports whether the configuration passed validation.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// Online reports the current connectivity state.
func (c *Client) Online() bool {
	return c.online.Load()
}

// onConnectivityChange records the transition and, on reconnect, drains the
// retry queue in the background.
func (c *Client) onConnectivityChange(online bool) {
	was := c.online.Swap(online)
	if was == online {
		return
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogQueue && c.logger != nil {
		c.logger.Info("Connectivity changed", "online", online, "queued", c.queue.Len())
	}
	if online {
		go c.queue.Drain(context.Background(), c.Online)
	}
}

// QueueIfOffline enqueues req when err is an offline failure and returns
// whether it did. Callers use it to defer mutations until connectivity
// returns.
func (c *Client) QueueIfOffline(err error, req *QueuedRequest) bool {
	if KindOf(err) != ErrorKindOffline {
		return false
	}
	c.queue.Enqueue(req)
	return true
}

// QueueLen returns the retry queue depth.
func (c *Client) QueueLen() int {
	return c.queue.Len()
}

// login acquires a fresh credential with the configured account. Runs through
// the executor so it gets the same timeout, retry and telemetry treatment as
// any other call; EndpointLogin is exempt from token acquisition.
func (c *Client) login(ctx context.Context) (*Credential, error) {
	body, err := canonicalBody(map[string]interface{}{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return nil, err
	}

	res, execErr := c.execute(ctx, EndpointLogin, body, executeOptions{})
	if execErr != nil {
		return nil, execErr
	}

	var payload struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := json.Unmarshal(res.Payload, &payload); err != nil || payload.Token == "" {
		return nil, &APIError{
			Kind:      ErrorKindAuthRequired,
			Message:   "login response missing token",
			Cause:     err,
			Endpoint:  string(EndpointLogin),
			Timestamp: time.Now(),
		}
	}
	return &Credential{Token: payload.Token, ExpiresAt: payload.ExpiresAt}, nil
}

// InvalidateBlogs drops every cached entry, across all strategies, tagged
// with any of the given blog IDs. Returns the number of entries removed.
func (c *Client) InvalidateBlogs(ids ...string) int {
	dropped := 0
	for _, bs := range []*boundedStore{c.ttl.store, c.swr.store, c.stale.store, c.conditional.store} {
		dropped += bs.invalidateBlogs(ids)
	}
	return dropped
}

// ClearCaches empties every strategy store.
func (c *Client) ClearCaches() {
	c.ttl.store.clear()
	c.swr.store.clear()
	c.stale.store.clear()
	c.conditional.store.clear()
}

// Close detaches the connectivity subscription and waits for in-flight
// background revalidations to finish.
func (c *Client) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.revalidations.Wait()
}
