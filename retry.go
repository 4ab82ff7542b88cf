package bdsmlr

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	internalbackoff "github.com/bdsmlr-com/bdsmlr-go/internal/backoff"
)

// RetryPolicy decides whether and when a failed attempt is retried. Two
// tracks exist: the general transient track (timeout, network, 5xx) with
// exponential backoff + jitter, and a rate-limit track with its own larger
// attempt budget that prefers the server's Retry-After hint over any
// computed delay. Auth failures never reach this policy; they follow the
// token manager's single-refresh rule.
type RetryPolicy struct {
	maxAttempts       int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64

	rateLimitAttempts     int
	rateLimitDefaultDelay time.Duration
	rateLimitMaxDelay     time.Duration

	calc *internalbackoff.Calculator
}

// NewRetryPolicy creates a policy with the standard defaults: 3 transient
// attempts from 300ms doubling to a 10s cap with ±25% jitter, and 5
// rate-limit attempts defaulting to 2s, hints capped at 60s.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		maxAttempts:           3,
		initialBackoff:        300 * time.Millisecond,
		maxBackoff:            10 * time.Second,
		backoffMultiplier:     2.0,
		jitter:                0.25,
		rateLimitAttempts:     5,
		rateLimitDefaultDelay: 2 * time.Second,
		rateLimitMaxDelay:     60 * time.Second,
		calc:                  internalbackoff.Exponential(),
	}
}

// ShouldRetry reports whether another attempt is allowed for the given error
// kind after `attempt` completed attempts.
func (p *RetryPolicy) ShouldRetry(kind ErrorKind, attempt int) bool {
	if !retryable(kind) {
		return false
	}
	if kind == ErrorKindRateLimited {
		return attempt < p.rateLimitAttempts
	}
	return attempt < p.maxAttempts
}

// DelayFor computes the pause before the next attempt. serverHint is the
// parsed Retry-After duration, zero when absent; it takes precedence on the
// rate-limit track, capped at the policy maximum.
func (p *RetryPolicy) DelayFor(kind ErrorKind, attempt int, serverHint time.Duration) time.Duration {
	if kind == ErrorKindRateLimited {
		if serverHint > 0 {
			if serverHint > p.rateLimitMaxDelay {
				return p.rateLimitMaxDelay
			}
			return serverHint
		}
		return p.calc.Calculate(attempt, p.rateLimitDefaultDelay, p.rateLimitMaxDelay, p.backoffMultiplier, p.jitter)
	}
	return p.calc.Calculate(attempt, p.initialBackoff, p.maxBackoff, p.backoffMultiplier, p.jitter)
}

// parseRetryAfter parses a Retry-After header value, supporting both
// delay-seconds and HTTP-date forms. Returns zero when absent or
// unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}
