package bdsmlr

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed API call. Kinds drive retry policy and the
// stale-if-error fallback gate.
type ErrorKind string

const (
	ErrorKindOffline      ErrorKind = "Offline"
	ErrorKindTimeout      ErrorKind = "Timeout"
	ErrorKindNetwork      ErrorKind = "Network"
	ErrorKindServer       ErrorKind = "ServerError"
	ErrorKindRateLimited  ErrorKind = "RateLimited"
	ErrorKindAuthRequired ErrorKind = "AuthRequired"
	ErrorKindParse        ErrorKind = "ParseError"
	ErrorKindNotFound     ErrorKind = "NotFound"
	ErrorKindUnknown      ErrorKind = "Unknown"

	// ErrorKindCircuitOpen and ErrorKindValidation are client-local kinds:
	// the first is produced by the optional circuit breaker, the second by
	// configuration validation.
	ErrorKindCircuitOpen ErrorKind = "CircuitOpen"
	ErrorKindValidation  ErrorKind = "Validation"
)

// Sentinel errors for common failure scenarios
var (
	// ErrOffline is returned when the connectivity signal reports offline.
	ErrOffline = errors.New("bdsmlr: offline")

	// ErrCircuitOpen is returned when the circuit breaker is in open state.
	ErrCircuitOpen = errors.New("bdsmlr: circuit open")

	// ErrQueueOverflow is reported to evicted retry-queue entries.
	ErrQueueOverflow = errors.New("bdsmlr: retry queue overflow")

	// ErrQueueRetriesExhausted is reported to queue entries dropped after
	// the maximum number of drain attempts.
	ErrQueueRetriesExhausted = errors.New("bdsmlr: retry queue retries exhausted")
)

// APIError is the typed error surfaced by the request executor and façade.
type APIError struct {
	Kind        ErrorKind
	Message     string
	Cause       error
	Endpoint    string
	StatusCode  int
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
}

// Error implements error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Endpoint != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Endpoint)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxAttempts)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error kinds for errors.Is.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*APIError); ok {
		return e.Kind == targetErr.Kind
	}
	switch target {
	case ErrOffline:
		return e.Kind == ErrorKindOffline
	case ErrCircuitOpen:
		return e.Kind == ErrorKindCircuitOpen
	}
	return false
}

// KindOf extracts the ErrorKind from an error chain, or ErrorKindUnknown.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, ErrOffline) {
		return ErrorKindOffline
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ErrorKindCircuitOpen
	}
	return ErrorKindUnknown
}

// IsTransient determines if an error represents a transient failure that
// might succeed on retry or warrants serving stale cached data. Returns true
// for offline, timeouts, network errors, 5xx responses and rate limiting.
// Returns false for auth, parse, not-found and validation failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case ErrorKindOffline, ErrorKindTimeout, ErrorKindNetwork, ErrorKindServer,
		ErrorKindRateLimited, ErrorKindCircuitOpen:
		return true
	default:
		return false
	}
}

// retryable reports whether the kind participates in the retry engine at
// all. AuthRequired is excluded here: it follows the token manager's
// single-refresh rule instead.
func retryable(kind ErrorKind) bool {
	switch kind {
	case ErrorKindTimeout, ErrorKindNetwork, ErrorKindServer, ErrorKindRateLimited:
		return true
	default:
		return false
	}
}
