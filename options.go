package bdsmlr

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	internalbackoff "github.com/bdsmlr-com/bdsmlr-go/internal/backoff"
)

// Option configures the client at construction time.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithCredentials sets the account used for login and refresh.
func WithCredentials(email, password string) Option {
	return func(c *Client) {
		c.email = email
		c.password = password
	}
}

// WithHTTPClient replaces the underlying HTTP client. Per-request deadlines
// come from the adaptive timeout layer; the supplied client should not set a
// competing Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithStore sets the persistent mirror for credentials and cache entries.
// Without one, state is memory-only and lost on restart.
func WithStore(store Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables debug logging with per-subsystem switches.
func WithDebug(cfg *DebugConfig) Option {
	return func(c *Client) {
		c.debug = cfg
	}
}

// WithMetrics attaches a Prometheus metrics collector.
func WithMetrics(mc *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// WithTelemetrySink replaces the default error reporter.
func WithTelemetrySink(sink TelemetrySink) Option {
	return func(c *Client) {
		c.telemetry = sink
	}
}

// WithMaxRetries sets the transient-error attempt budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.retryPolicy.maxAttempts = n
	}
}

// WithBackoff tunes the transient-track backoff curve.
func WithBackoff(initial, max time.Duration, multiplier, jitter float64) Option {
	return func(c *Client) {
		c.retryPolicy.initialBackoff = initial
		c.retryPolicy.maxBackoff = max
		c.retryPolicy.backoffMultiplier = multiplier
		c.retryPolicy.jitter = jitter
	}
}

// WithRateLimitRetries tunes the rate-limit track: its attempt budget, the
// delay used when the server sends no hint, and the cap applied to hints.
func WithRateLimitRetries(attempts int, defaultDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryPolicy.rateLimitAttempts = attempts
		c.retryPolicy.rateLimitDefaultDelay = defaultDelay
		c.retryPolicy.rateLimitMaxDelay = maxDelay
	}
}

// WithBackoffStrategy replaces the backoff calculation, e.g. with the
// decorrelated-jitter strategy.
func WithBackoffStrategy(s internalbackoff.Strategy) Option {
	return func(c *Client) {
		c.retryPolicy.calc = internalbackoff.NewCalculator(s)
	}
}

// WithCacheMaxEntries caps each strategy store.
func WithCacheMaxEntries(n int) Option {
	return func(c *Client) {
		c.cacheMaxEntries = n
	}
}

// WithCacheTTL sets the default TTL-strategy lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithNotFoundTTL sets how long a cached not-found marker lives.
func WithNotFoundTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.notFoundTTL = ttl
	}
}

// WithSWRWindows sets the stale-while-revalidate windows.
func WithSWRWindows(fresh, stale, maxAge time.Duration) Option {
	return func(c *Client) {
		c.swrFresh = fresh
		c.swrStale = stale
		c.swrMaxAge = maxAge
	}
}

// WithStaleWindow sets the stale-if-error fallback window.
func WithStaleWindow(window time.Duration) Option {
	return func(c *Client) {
		c.staleWindow = window
	}
}

// WithConnectivity plugs in a connectivity signal. Transitions to online
// trigger a drain of the retry queue.
func WithConnectivity(signal ConnectivitySignal) Option {
	return func(c *Client) {
		c.connectivity = signal
	}
}

// WithRetryQueueCapacity bounds the offline retry queue.
func WithRetryQueueCapacity(n int) Option {
	return func(c *Client) {
		c.queueCapacity = n
	}
}

// WithRateLimiter enables the client-side token bucket.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithCircuitBreaker enables the circuit breaker.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(cfg)
	}
}

// ValidateConfiguration checks the assembled client for configuration
// mistakes, collecting every problem rather than stopping at the first.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	if c.baseURL == "" {
		problems = append(problems, "BaseURL: must not be empty")
	} else if !strings.HasPrefix(c.baseURL, "http://") && !strings.HasPrefix(c.baseURL, "https://") {
		problems = append(problems, "BaseURL: must start with http:// or https://")
	}

	if c.httpClient == nil {
		problems = append(problems, "HTTPClient: must not be nil")
	}

	if p := c.retryPolicy; p != nil {
		if p.maxAttempts < 1 {
			problems = append(problems, "MaxRetries: must be at least 1")
		}
		if p.initialBackoff <= 0 {
			problems = append(problems, "Backoff: initial delay must be positive")
		}
		if p.maxBackoff < p.initialBackoff {
			problems = append(problems, "Backoff: max delay must be >= initial delay")
		}
		if p.backoffMultiplier < 1 {
			problems = append(problems, "Backoff: multiplier must be >= 1")
		}
		if p.jitter < 0 || p.jitter > 1 {
			problems = append(problems, "Backoff: jitter must be in [0, 1]")
		}
		if p.rateLimitAttempts < 1 {
			problems = append(problems, "RateLimitRetries: attempt budget must be at least 1")
		}
	}

	if c.cacheMaxEntries < 0 {
		problems = append(problems, "CacheMaxEntries: must not be negative")
	}
	if c.cacheTTL < 0 {
		problems = append(problems, "CacheTTL: must not be negative")
	}
	if c.notFoundTTL < 0 {
		problems = append(problems, "NotFoundTTL: must not be negative")
	}
	if c.swrFresh < 0 || c.swrStale < 0 || c.swrMaxAge < 0 {
		problems = append(problems, "SWRWindows: must not be negative")
	}
	if c.swrStale > 0 && c.swrFresh > c.swrStale {
		problems = append(problems, "SWRWindows: fresh window must not exceed stale window")
	}
	if c.staleWindow < 0 {
		problems = append(problems, "StaleWindow: must not be negative")
	}
	if c.queueCapacity < 0 {
		problems = append(problems, "RetryQueueCapacity: must not be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return &APIError{
		Kind:      ErrorKindValidation,
		Message:   fmt.Sprintf("invalid configuration: %s", strings.Join(problems, "; ")),
		Timestamp: time.Now(),
	}
}
