package bdsmlr

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient spins up an httptest server and a client pointed at it with
// fast retry timings.
func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []Option{
		WithBaseURL(srv.URL),
		WithCredentials("test@example.com", "secret"),
		WithBackoff(time.Millisecond, 5*time.Millisecond, 2.0, 0),
		WithRateLimitRetries(5, time.Millisecond, 10*time.Millisecond),
	}
	c := New(append(base, opts...)...)
	t.Cleanup(c.Close)
	return c
}

// authMux wraps a handler with a counting login endpoint.
type authMux struct {
	logins  int64
	handler http.HandlerFunc
}

func newAuthMux(handler http.HandlerFunc) *authMux {
	return &authMux{handler: handler}
}

func (m *authMux) Logins() int {
	return int(atomic.LoadInt64(&m.logins))
}

func (m *authMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == string(EndpointLogin) {
		atomic.AddInt64(&m.logins, 1)
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"token":"test-token"}`)); err != nil {
			panic(err)
		}
		return
	}
	m.handler(w, r)
}

// testSignal is a manually driven connectivity signal.
type testSignal struct {
	mu     sync.Mutex
	online bool
	subs   []func(bool)
}

func newTestSignal(online bool) *testSignal {
	return &testSignal{online: online}
}

func (s *testSignal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *testSignal) Subscribe(fn func(online bool)) (cancel func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
	return func() {}
}

func (s *testSignal) Set(online bool) {
	s.mu.Lock()
	s.online = online
	subs := append([]func(bool){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(body)); err != nil {
		panic(err)
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
