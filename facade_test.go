package bdsmlr

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestTTLCacheServesSecondCall(t *testing.T) {
	var calls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		writeJSON(w, `{"blog":{"id":1,"name":"art"}}`)
	})
	c := newTestClient(t, mux)

	first, err := c.Blogs.Get(context.Background(), "1")
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if first.Meta.FromCache {
		t.Error("First call should not come from cache")
	}

	second, err := c.Blogs.Get(context.Background(), "1")
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if !second.Meta.FromCache || !second.Meta.IsFresh {
		t.Errorf("Second call should be a fresh cache hit, got %+v", second.Meta)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("Expected 1 network call, got %d", got)
	}
}

func TestTTLCacheKeyNormalization(t *testing.T) {
	var calls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		writeJSON(w, `{"ok":true}`)
	})
	c := newTestClient(t, mux)

	opts := RequestOptions{Cache: CacheTTL}
	if _, err := c.DoWithOptions(context.Background(), EndpointGetBlog, map[string]interface{}{"blog_id": "9"}, opts); err != nil {
		t.Fatal(err)
	}
	// camelCase variant of the same request must hit the same entry.
	if _, err := c.DoWithOptions(context.Background(), EndpointGetBlog, map[string]interface{}{"blogId": "9"}, opts); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("Expected variant spellings to share one cache entry, got %d calls", got)
	}
}

func TestTTLNotFoundMarker(t *testing.T) {
	var calls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, mux)

	if _, err := c.Blogs.Get(context.Background(), "gone"); KindOf(err) != ErrorKindNotFound {
		t.Fatalf("Expected NotFound, got %v", err)
	}
	if _, err := c.Blogs.Get(context.Background(), "gone"); KindOf(err) != ErrorKindNotFound {
		t.Fatalf("Expected cached NotFound, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("Expected the marker to absorb the second lookup, got %d calls", got)
	}
}

func TestSWRServesStaleAndRevalidates(t *testing.T) {
	var calls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		writeJSON(w, fmt.Sprintf(`{"posts":[{"id":%d}],"total":1}`, n))
	})
	c := newTestClient(t, mux, WithSWRWindows(time.Nanosecond, time.Minute, time.Hour))

	req := ListPostsRequest{BlogIDs: []string{"art"}, Page: 1}
	first, err := c.Posts.List(context.Background(), req)
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}
	if first.Meta.FromCache {
		t.Error("First call should be live")
	}

	// The nanosecond fresh window has lapsed; the entry is stale.
	time.Sleep(time.Millisecond)

	second, err := c.Posts.List(context.Background(), req)
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}
	if !second.Meta.FromCache || !second.Meta.IsStale {
		t.Errorf("Second call should serve stale, got %+v", second.Meta)
	}
	if string(second.Data) != string(first.Data) {
		t.Error("Stale serve should return the original payload")
	}

	// One background revalidation runs; its result replaces the entry.
	waitFor(t, time.Second, func() bool { return atomic.LoadInt64(&calls) >= 2 })
	waitFor(t, time.Second, func() bool {
		e, _ := c.swr.store.get(requestKeyFor(EndpointListPosts, req))
		return e != nil && !e.Revalidating
	})

	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("Expected exactly one revalidation, got %d total calls", got)
	}
}

// requestKeyFor mirrors the façade's key derivation for assertions.
func requestKeyFor(endpoint Endpoint, req ListPostsRequest) string {
	normalized := NormalizeBody(endpoint, map[string]interface{}{
		"blogIds": req.BlogIDs,
		"page":    req.Page,
		"perPage": req.PerPage,
	})
	canonical, _ := canonicalBody(normalized)
	return requestKey(endpoint, canonical)
}

func TestStaleIfErrorFallsBackOnTransient(t *testing.T) {
	var fail atomic.Bool
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, `{"likes":[{"blogId":1}]}`)
	})
	c := newTestClient(t, mux, WithMaxRetries(1))

	req := EngagementRequest{PostID: "p1", Page: 1}
	if _, err := c.Engagement.Likes(context.Background(), req); err != nil {
		t.Fatalf("Likes() returned error: %v", err)
	}

	fail.Store(true)
	res, err := c.Engagement.Likes(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected stale fallback, got error: %v", err)
	}
	if !res.Meta.FromCache || !res.Meta.IsStale {
		t.Errorf("Expected stale cache serve, got %+v", res.Meta)
	}
}

func TestStaleIfErrorDoesNotMaskTerminalErrors(t *testing.T) {
	var status atomic.Int64
	status.Store(http.StatusOK)
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		if s := int(status.Load()); s != http.StatusOK {
			w.WriteHeader(s)
			return
		}
		writeJSON(w, `{"likes":[]}`)
	})
	c := newTestClient(t, mux)

	req := EngagementRequest{PostID: "p2", Page: 1}
	if _, err := c.Engagement.Likes(context.Background(), req); err != nil {
		t.Fatalf("Likes() returned error: %v", err)
	}

	status.Store(http.StatusNotFound)
	_, err := c.Engagement.Likes(context.Background(), req)
	if KindOf(err) != ErrorKindNotFound {
		t.Fatalf("Terminal error must propagate, got %v", err)
	}
}

func TestConditionalRevalidation(t *testing.T) {
	var calls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		writeJSON(w, `{"blogs":[{"id":1}]}`)
	})
	c := newTestClient(t, mux)

	req := SearchBlogsRequest{Query: "art", Page: 1}
	first, err := c.Blogs.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() returned error: %v", err)
	}
	if first.Meta.FromCache {
		t.Error("First call should be live")
	}

	second, err := c.Blogs.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() returned error: %v", err)
	}
	if !second.Meta.NotModified || !second.Meta.FromCache {
		t.Errorf("Expected 304 serve from cache, got %+v", second.Meta)
	}
	if string(second.Data) != string(first.Data) {
		t.Error("304 must serve the cached body")
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("Expected 2 network calls, got %d", got)
	}
}

func TestSkipCacheBypassesStore(t *testing.T) {
	var calls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		writeJSON(w, `{"ok":true}`)
	})
	c := newTestClient(t, mux)

	opts := RequestOptions{Cache: CacheTTL}
	if _, err := c.DoWithOptions(context.Background(), EndpointGetBlog, map[string]interface{}{"blogId": "a"}, opts); err != nil {
		t.Fatal(err)
	}

	opts.SkipCache = true
	if _, err := c.DoWithOptions(context.Background(), EndpointGetBlog, map[string]interface{}{"blogId": "a"}, opts); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("SkipCache must force a network call, got %d", got)
	}
}

func TestLikeInvalidatesBlogEntries(t *testing.T) {
	var listCalls int64
	mux := newAuthMux(func(w http.ResponseWriter, r *http.Request) {
		switch Endpoint(r.URL.Path) {
		case EndpointLike:
			writeJSON(w, `{"ok":true}`)
		case EndpointGetBlog:
			atomic.AddInt64(&listCalls, 1)
			writeJSON(w, `{"blog":{"id":7,"name":"b"}}`)
		default:
			writeJSON(w, `{"ok":true}`)
		}
	})
	c := newTestClient(t, mux)

	if _, err := c.Blogs.Get(context.Background(), "7"); err != nil {
		t.Fatal(err)
	}
	if err := c.Engagement.Like(context.Background(), "p9", "7", true); err != nil {
		t.Fatalf("Like() returned error: %v", err)
	}
	// The cached blog entry was tagged with blog 7 and must be gone.
	if _, err := c.Blogs.Get(context.Background(), "7"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&listCalls); got != 2 {
		t.Errorf("Expected invalidation to force a refetch, got %d calls", got)
	}
}
