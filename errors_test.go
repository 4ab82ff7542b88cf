package bdsmlr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{
		Kind:        ErrorKindServer,
		Message:     "upstream exploded",
		Endpoint:    string(EndpointListPosts),
		Attempt:     3,
		MaxAttempts: 3,
		Cause:       errors.New("502 Bad Gateway"),
		Timestamp:   time.Now(),
	}

	msg := err.Error()
	for _, want := range []string{"ServerError", "upstream exploded", "/v2/posts/list", "attempt 3/3", "502"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() missing %q: %s", want, msg)
		}
	}
}

func TestAPIErrorIsMatchesKind(t *testing.T) {
	err := &APIError{Kind: ErrorKindOffline, Message: "offline"}

	if !errors.Is(err, ErrOffline) {
		t.Error("Offline APIError must match ErrOffline")
	}
	if !errors.Is(err, &APIError{Kind: ErrorKindOffline}) {
		t.Error("APIErrors of the same kind must match")
	}
	if errors.Is(err, &APIError{Kind: ErrorKindTimeout}) {
		t.Error("Different kinds must not match")
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &APIError{Kind: ErrorKindNetwork, Message: "send failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("Cause must be reachable through the chain")
	}
}

func TestKindOfWrappedError(t *testing.T) {
	inner := &APIError{Kind: ErrorKindRateLimited, Message: "slow down"}
	wrapped := fmt.Errorf("fetching likes: %w", inner)

	if KindOf(wrapped) != ErrorKindRateLimited {
		t.Errorf("Expected RateLimited through wrapping, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != ErrorKindUnknown {
		t.Error("Plain errors classify as Unknown")
	}
	if KindOf(fmt.Errorf("ctx: %w", ErrOffline)) != ErrorKindOffline {
		t.Error("Wrapped sentinel must classify as Offline")
	}
}

func TestIsTransient(t *testing.T) {
	transient := []ErrorKind{ErrorKindOffline, ErrorKindTimeout, ErrorKindNetwork, ErrorKindServer, ErrorKindRateLimited, ErrorKindCircuitOpen}
	for _, kind := range transient {
		if !IsTransient(&APIError{Kind: kind}) {
			t.Errorf("%s should be transient", kind)
		}
	}

	terminal := []ErrorKind{ErrorKindAuthRequired, ErrorKindParse, ErrorKindNotFound, ErrorKindValidation, ErrorKindUnknown}
	for _, kind := range terminal {
		if IsTransient(&APIError{Kind: kind}) {
			t.Errorf("%s should not be transient", kind)
		}
	}

	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
}
