// Package bdsmlr is the Go API client for the bdsmlr content platform. It
// turns the platform's rate-limited, variable-latency JSON-over-HTTP API into
// a dependable data-access layer:
//
//   - Bearer-token lifecycle with proactive refresh and refresh de-duplication
//   - Adaptive per-endpoint timeouts learned from observed latency
//   - Retries with exponential backoff + jitter, and a separate rate-limit
//     track that honors server Retry-After hints
//   - Four caching strategies (TTL, stale-while-revalidate, stale-if-error,
//     HTTP-conditional) behind one request façade
//   - Partial-response recovery: salvages complete items from a truncated body
//   - Offline detection and a connection-recovery retry queue
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - No package-level mutable state; every Client instance is independent
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via pluggable Store, Logger, TelemetrySink and metrics
//
// Typical usage:
//
//	client := bdsmlr.New(
//	    bdsmlr.WithCredentials("user@example.com", "secret"),
//	    bdsmlr.WithMaxRetries(3),
//	    bdsmlr.WithMetrics(bdsmlr.NewMetricsCollector()),
//	)
//	posts, err := client.Posts.List(ctx, bdsmlr.ListPostsRequest{BlogIDs: []string{"art"}})
//
// Callers that need strategy-level control use DoWithOptions directly and
// receive a Result envelope describing how the data was served (fresh, stale,
// revalidating, partial). Domain services (Posts, Blogs, Graph, Activity,
// Engagement, Media, Identity) pick sensible strategies per operation.
package bdsmlr
