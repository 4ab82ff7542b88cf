package bdsmlr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a response body is buffered.
const maxResponseBytes = 10 * 1024 * 1024

// rawResponse is the executor's result: the parsed-enough payload plus the
// transport facts the caching layer needs.
type rawResponse struct {
	Status        int
	Header        http.Header
	Payload       json.RawMessage
	NotModified   bool
	Partial       bool
	Items         int
	BytesReceived int64
	Attempts      int
}

// executeOptions tune a single executor call.
type executeOptions struct {
	// cacheKey enables validator harvesting into the conditional cache.
	cacheKey string

	// conditional validators to attach as If-None-Match / If-Modified-Since.
	etag         string
	lastModified string

	// recoveryField enables partial-response recovery for the named array.
	recoveryField string
}

// attemptError is the classified outcome of one attempt.
type attemptError struct {
	kind   ErrorKind
	msg    string
	cause  error
	status int
	hint   time.Duration
	reauth bool
}

// execute performs one logical authenticated call: offline check, token
// acquisition, adaptive timeout, send, classification, and the retry loop.
// Retries are an explicit loop so retry state stays bounded and
// inspectable. A 401 triggers one forced re-login and one replay outside
// the retry budget; a second 401 is terminal.
func (c *Client) execute(ctx context.Context, endpoint Endpoint, body []byte, opts executeOptions) (*rawResponse, error) {
	start := time.Now()

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting request", "requestID", requestID, "endpoint", endpoint)
	}

	c.metrics.RecordRequestStart(string(endpoint))
	defer c.metrics.RecordRequestEnd(string(endpoint))

	attempt := 0
	authRetried := false

	for {
		res, aerr := c.attempt(ctx, endpoint, body, opts)
		if aerr == nil {
			res.Attempts = attempt + 1
			c.metrics.RecordRequest(string(endpoint), res.Status, time.Since(start))
			return res, nil
		}

		if aerr.reauth && !authRetried {
			authRetried = true
			c.tokens.Invalidate()
			if c.debug != nil && c.debug.Enabled && c.debug.LogAuth && c.logger != nil {
				c.logger.Info("Credential rejected, re-authenticating", "requestID", requestID, "endpoint", endpoint)
			}
			continue
		}
		if aerr.reauth {
			aerr.kind = ErrorKindAuthRequired
			aerr.msg = "credential rejected after refresh"
		}

		// A dead caller context makes further attempts pointless.
		if ctx.Err() != nil {
			return nil, c.terminal(endpoint, requestID, attempt+1, start, aerr)
		}

		if c.retryPolicy.ShouldRetry(aerr.kind, attempt+1) {
			delay := c.retryPolicy.DelayFor(aerr.kind, attempt, aerr.hint)
			c.metrics.RecordRetry(string(endpoint), aerr.kind, attempt+1)
			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("Scheduling retry",
					"requestID", requestID, "endpoint", endpoint,
					"kind", aerr.kind, "attempt", attempt+1, "backoff", delay)
			}
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, c.terminal(endpoint, requestID, attempt+1, start, &attemptError{
					kind: ErrorKindTimeout, msg: "canceled while waiting to retry", cause: err,
				})
			}
			attempt++
			continue
		}

		return nil, c.terminal(endpoint, requestID, attempt+1, start, aerr)
	}
}

// terminal converts an attemptError into the typed APIError, reporting it to
// the telemetry sink before it propagates.
func (c *Client) terminal(endpoint Endpoint, requestID string, attempts int, start time.Time, aerr *attemptError) error {
	maxAttempts := c.retryPolicy.maxAttempts
	if aerr.kind == ErrorKindRateLimited {
		maxAttempts = c.retryPolicy.rateLimitAttempts
	}
	err := &APIError{
		Kind:        aerr.kind,
		Message:     aerr.msg,
		Cause:       aerr.cause,
		Endpoint:    string(endpoint),
		StatusCode:  aerr.status,
		Attempt:     attempts,
		MaxAttempts: maxAttempts,
		Timestamp:   time.Now(),
		Duration:    time.Since(start),
	}
	c.metrics.RecordRequest(string(endpoint), aerr.status, time.Since(start))
	if c.telemetry != nil {
		c.telemetry.ReportError(err, ErrorContext{
			Endpoint:  string(endpoint),
			Attempts:  attempts,
			RequestID: requestID,
		})
	}
	return err
}

// attempt performs exactly one network attempt and classifies the outcome.
func (c *Client) attempt(ctx context.Context, endpoint Endpoint, body []byte, opts executeOptions) (*rawResponse, *attemptError) {
	if !c.Online() {
		return nil, &attemptError{kind: ErrorKindOffline, msg: "client is offline", cause: ErrOffline}
	}

	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		return nil, &attemptError{kind: ErrorKindRateLimited, msg: "client-side rate limit exceeded"}
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		return nil, &attemptError{kind: ErrorKindCircuitOpen, msg: "circuit breaker is open", cause: ErrCircuitOpen}
	}

	var token string
	if endpoint != EndpointLogin {
		var err error
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, &attemptError{kind: ErrorKindAuthRequired, msg: "authentication failed", cause: err}
		}
	}

	timeout := c.timing.AdaptiveTimeout(endpoint, ConfiguredTimeout(endpoint))
	c.metrics.RecordAdaptiveTimeout(string(endpoint), timeout)

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+string(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, &attemptError{kind: ErrorKindUnknown, msg: "building request", cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	attachConditionalHeaders(req, opts.etag, opts.lastModified)

	sendStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Canceled by the caller, not by the adaptive deadline; no
			// timing feedback, the true duration is unknown.
			return nil, &attemptError{kind: ErrorKindTimeout, msg: "request canceled", cause: ctx.Err()}
		}
		if attemptCtx.Err() == context.DeadlineExceeded {
			c.timing.RecordTimeoutAt(endpoint, timeout)
			return nil, &attemptError{kind: ErrorKindTimeout, msg: "request deadline exceeded", cause: err}
		}
		c.timing.Record(endpoint, time.Since(sendStart))
		c.recordBreakerFailure()
		return nil, &attemptError{kind: ErrorKindNetwork, msg: "network request failed", cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		c.timing.Record(endpoint, time.Since(sendStart))
		c.recordBreakerSuccess()
		return &rawResponse{Status: resp.StatusCode, Header: resp.Header, NotModified: true}, nil

	case resp.StatusCode == http.StatusUnauthorized:
		c.timing.Record(endpoint, time.Since(sendStart))
		drain(resp.Body)
		return nil, &attemptError{kind: ErrorKindAuthRequired, msg: "unauthorized", status: resp.StatusCode, reauth: true}

	case resp.StatusCode == http.StatusTooManyRequests:
		c.timing.Record(endpoint, time.Since(sendStart))
		drain(resp.Body)
		hint := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &attemptError{kind: ErrorKindRateLimited, msg: "rate limited by server", status: resp.StatusCode, hint: hint}

	case resp.StatusCode == http.StatusNotFound:
		c.timing.Record(endpoint, time.Since(sendStart))
		drain(resp.Body)
		return nil, &attemptError{kind: ErrorKindNotFound, msg: "resource not found", status: resp.StatusCode}

	case resp.StatusCode >= 500:
		c.timing.Record(endpoint, time.Since(sendStart))
		drain(resp.Body)
		c.recordBreakerFailure()
		return nil, &attemptError{kind: ErrorKindServer, msg: "server error", status: resp.StatusCode}

	case resp.StatusCode >= 400:
		c.timing.Record(endpoint, time.Since(sendStart))
		drain(resp.Body)
		return nil, &attemptError{kind: ErrorKindUnknown, msg: "unexpected client error", status: resp.StatusCode}
	}

	res, aerr := c.readBody(endpoint, resp, opts, attemptCtx, timeout, sendStart)
	if aerr != nil {
		return nil, aerr
	}

	// Harvest validators on every success regardless of the caller's
	// strategy: they are free side information for conditional requests.
	if opts.cacheKey != "" && !res.Partial {
		c.conditional.Harvest(opts.cacheKey, res.Payload, resp.Header)
	}

	c.recordBreakerSuccess()
	return res, nil
}

// readBody consumes the response body, optionally through the partial
// recovery path, and applies the application-level error-field check.
func (c *Client) readBody(endpoint Endpoint, resp *http.Response, opts executeOptions, attemptCtx context.Context, timeout time.Duration, sendStart time.Time) (*rawResponse, *attemptError) {
	var payload json.RawMessage
	var bytesReceived int64
	partial := false
	items := 0

	if opts.recoveryField != "" {
		bodyTimeout := timeout - time.Since(sendStart)
		if dl, ok := attemptCtx.Deadline(); ok {
			bodyTimeout = time.Until(dl)
		}
		rec, err := readBodyWithRecovery(resp.Body, opts.recoveryField, bodyTimeout)
		if err != nil {
			if errors.Is(err, errNoSalvage) {
				c.timing.RecordTimeoutAt(endpoint, timeout)
				return nil, &attemptError{kind: ErrorKindTimeout, msg: "body timeout with nothing to salvage", cause: err}
			}
			c.timing.Record(endpoint, time.Since(sendStart))
			c.recordBreakerFailure()
			return nil, &attemptError{kind: ErrorKindNetwork, msg: "reading response body", cause: err}
		}
		payload = rec.Data
		bytesReceived = rec.BytesReceived
		partial = !rec.IsComplete
		items = rec.Items
		if partial {
			c.metrics.RecordPartialRecovery(string(endpoint))
			c.timing.RecordTimeoutAt(endpoint, timeout)
		} else {
			c.timing.Record(endpoint, time.Since(sendStart))
		}
	} else {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			if attemptCtx.Err() == context.DeadlineExceeded {
				c.timing.RecordTimeoutAt(endpoint, timeout)
				return nil, &attemptError{kind: ErrorKindTimeout, msg: "body read deadline exceeded", cause: err}
			}
			c.timing.Record(endpoint, time.Since(sendStart))
			c.recordBreakerFailure()
			return nil, &attemptError{kind: ErrorKindNetwork, msg: "reading response body", cause: err}
		}
		payload = data
		bytesReceived = int64(len(data))
		c.timing.Record(endpoint, time.Since(sendStart))
	}

	// An `error` string field signals an application-level failure even on
	// HTTP 200.
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, &attemptError{kind: ErrorKindParse, msg: "malformed response body", cause: err, status: resp.StatusCode}
	}
	if envelope.Error != "" {
		c.recordBreakerFailure()
		return nil, &attemptError{kind: ErrorKindServer, msg: envelope.Error, status: resp.StatusCode}
	}

	return &rawResponse{
		Status:        resp.StatusCode,
		Header:        resp.Header,
		Payload:       payload,
		Partial:       partial,
		Items:         items,
		BytesReceived: bytesReceived,
	}, nil
}

func (c *Client) recordBreakerFailure() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.RecordFailure()
	}
}

func (c *Client) recordBreakerSuccess() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.RecordSuccess()
	}
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))
}
