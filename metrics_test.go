package bdsmlr

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollectorNilSafe(t *testing.T) {
	var mc *MetricsCollector

	// Every method must tolerate a nil receiver.
	mc.RecordRequest("/v2/posts/list", 200, time.Second)
	mc.RecordRequestStart("/v2/posts/list")
	mc.RecordRequestEnd("/v2/posts/list")
	mc.RecordRetry("/v2/posts/list", ErrorKindNetwork, 1)
	mc.RecordTokenRefresh()
	mc.RecordCacheHit("ttl", "fresh")
	mc.RecordCacheMiss("ttl")
	mc.RecordCacheSize("ttl", 10)
	mc.RecordAdaptiveTimeout("/v2/posts/list", time.Second)
	mc.RecordPartialRecovery("/v2/posts/list")
	mc.RecordRetryQueueDepth(3)
	mc.RecordError(ErrorKindServer, "/v2/posts/list")
}

func TestMetricsCollectorCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordRequest("/v2/posts/list", 200, 120*time.Millisecond)
	mc.RecordRequest("/v2/posts/list", 200, 80*time.Millisecond)
	mc.RecordRequest("/v2/posts/list", 500, time.Second)

	got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("/v2/posts/list", "200"))
	if got != 2 {
		t.Errorf("Expected 2 requests with status 200, got %v", got)
	}
	got = testutil.ToFloat64(mc.requestsTotal.WithLabelValues("/v2/posts/list", "500"))
	if got != 1 {
		t.Errorf("Expected 1 request with status 500, got %v", got)
	}
}

func TestMetricsCollectorCacheAndQueue(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordCacheHit("swr", "stale")
	mc.RecordCacheHit("swr", "stale")
	mc.RecordCacheMiss("swr")
	mc.RecordCacheSize("swr", 42)
	mc.RecordRetryQueueDepth(7)

	if got := testutil.ToFloat64(mc.cacheHits.WithLabelValues("swr", "stale")); got != 2 {
		t.Errorf("Expected 2 stale hits, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheMisses.WithLabelValues("swr")); got != 1 {
		t.Errorf("Expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheSize.WithLabelValues("swr")); got != 42 {
		t.Errorf("Expected size gauge 42, got %v", got)
	}
	if got := testutil.ToFloat64(mc.retryQueueDepth); got != 7 {
		t.Errorf("Expected queue depth 7, got %v", got)
	}
}

func TestMetricsWiredThroughClient(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	c := New(
		WithBaseURL("https://api.bdsmlr.com"),
		WithMetrics(mc),
	)
	t.Cleanup(c.Close)

	if c.metrics != mc {
		t.Fatal("Expected collector attached to client")
	}
	if c.ttl.store.metrics != mc {
		t.Error("Expected collector propagated to cache stores")
	}
	if c.queue.metrics != mc {
		t.Error("Expected collector propagated to retry queue")
	}
}
