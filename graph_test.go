package bdsmlr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
)

func TestFollowGraphSendsNumericDirection(t *testing.T) {
	var gotDirection atomic.Value
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		if err := json.Unmarshal(body, &req); err == nil {
			gotDirection.Store(req["direction"])
		}
		writeJSON(w, `{"entries":[{"blogId":1,"name":"a"}],"total":1}`)
	})
	c := newTestClient(t, mux)

	if _, err := c.Graph.Fetch(context.Background(), FollowGraphRequest{
		BlogID:    "7",
		Direction: "followers",
		Page:      1,
	}); err != nil {
		t.Fatalf("Fetch() returned error: %v", err)
	}

	// JSON numbers decode as float64.
	if d, _ := gotDirection.Load().(float64); int(d) != DirectionFollowers {
		t.Errorf("Expected numeric direction %d on the wire, got %v", DirectionFollowers, gotDirection.Load())
	}
}

func TestFollowGraphEmptyFirstPageNotCached(t *testing.T) {
	var calls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			// The known backend bug: empty page one with a positive total.
			writeJSON(w, `{"entries":[],"total":12}`)
			return
		}
		writeJSON(w, `{"entries":[{"blogId":1,"name":"a"}],"total":12}`)
	})
	c := newTestClient(t, mux)

	first, err := c.Graph.Followers(context.Background(), "7", 1)
	if err != nil {
		t.Fatalf("Followers() returned error: %v", err)
	}
	entries, total, err := DecodeFollowEntries(first.Data)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 || total != 12 {
		t.Fatalf("Suspicious page must still be served, got %d entries total %d", len(entries), total)
	}

	// The poisoned page was not cached: the retry reaches the network.
	second, err := c.Graph.Followers(context.Background(), "7", 1)
	if err != nil {
		t.Fatal(err)
	}
	if second.Meta.FromCache {
		t.Error("Empty-first-page response must not be cached")
	}
	entries, _, _ = DecodeFollowEntries(second.Data)
	if len(entries) != 1 {
		t.Errorf("Expected real data on retry, got %d entries", len(entries))
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("Expected 2 network calls, got %d", got)
	}
}

func TestFollowGraphTrulyEmptyPageCached(t *testing.T) {
	var calls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		writeJSON(w, `{"entries":[],"total":0}`)
	})
	c := newTestClient(t, mux)

	if _, err := c.Graph.Followers(context.Background(), "lonely", 1); err != nil {
		t.Fatal(err)
	}
	res, err := c.Graph.Followers(context.Background(), "lonely", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Meta.FromCache {
		t.Error("A genuinely empty page is a valid, cacheable result")
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("Expected 1 network call, got %d", got)
	}
}
