package bdsmlr

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// the caching/retry layers. All methods are nil-receiver safe so callers
// never need to guard instrumentation sites.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	tokenRefreshes prometheus.Counter

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	adaptiveTimeout *prometheus.GaugeVec

	partialRecoveries *prometheus.CounterVec

	retryQueueDepth prometheus.Gauge

	errorsTotal *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdsmlr_requests_total",
				Help: "Total number of API requests made",
			},
			[]string{"endpoint", "status_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bdsmlr_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "status_code"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bdsmlr_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdsmlr_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"endpoint", "kind", "attempt"},
		),
		tokenRefreshes: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "bdsmlr_token_refreshes_total",
				Help: "Total number of credential refresh logins",
			},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdsmlr_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"strategy", "state"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdsmlr_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"strategy"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bdsmlr_cache_size",
				Help: "Current number of entries per cache store",
			},
			[]string{"strategy"},
		),
		adaptiveTimeout: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bdsmlr_adaptive_timeout_seconds",
				Help: "Most recently computed adaptive timeout per endpoint",
			},
			[]string{"endpoint"},
		),
		partialRecoveries: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdsmlr_partial_recoveries_total",
				Help: "Total number of responses salvaged from truncated bodies",
			},
			[]string{"endpoint"},
		),
		retryQueueDepth: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "bdsmlr_retry_queue_depth",
				Help: "Current number of entries in the connection-recovery queue",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdsmlr_errors_total",
				Help: "Total number of terminal errors by kind",
			},
			[]string{"kind", "endpoint"},
		),
		registry: registry,
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	code := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(endpoint, code).Inc()
	mc.requestDuration.WithLabelValues(endpoint, code).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(endpoint string, kind ErrorKind, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(endpoint, string(kind), strconv.Itoa(attempt)).Inc()
}

// RecordTokenRefresh increments the refresh counter.
func (mc *MetricsCollector) RecordTokenRefresh() {
	if mc == nil {
		return
	}
	mc.tokenRefreshes.Inc()
}

// RecordCacheHit increments the per-strategy hit counter. State is one of
// "fresh", "stale" or "revalidated".
func (mc *MetricsCollector) RecordCacheHit(strategy, state string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(strategy, state).Inc()
}

// RecordCacheMiss increments the per-strategy miss counter.
func (mc *MetricsCollector) RecordCacheMiss(strategy string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(strategy).Inc()
}

// RecordCacheSize sets the per-strategy size gauge.
func (mc *MetricsCollector) RecordCacheSize(strategy string, size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.WithLabelValues(strategy).Set(float64(size))
}

// RecordAdaptiveTimeout sets the computed timeout gauge for an endpoint.
func (mc *MetricsCollector) RecordAdaptiveTimeout(endpoint string, timeout time.Duration) {
	if mc == nil {
		return
	}
	mc.adaptiveTimeout.WithLabelValues(endpoint).Set(timeout.Seconds())
}

// RecordPartialRecovery increments the salvage counter.
func (mc *MetricsCollector) RecordPartialRecovery(endpoint string) {
	if mc == nil {
		return
	}
	mc.partialRecoveries.WithLabelValues(endpoint).Inc()
}

// RecordRetryQueueDepth sets the queue depth gauge.
func (mc *MetricsCollector) RecordRetryQueueDepth(depth int) {
	if mc == nil {
		return
	}
	mc.retryQueueDepth.Set(float64(depth))
}

// RecordError increments the terminal error counter.
func (mc *MetricsCollector) RecordError(kind ErrorKind, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(string(kind), endpoint).Inc()
}

// Registry exposes the registerer the collector was built on.
func (mc *MetricsCollector) Registry() prometheus.Registerer {
	return mc.registry
}
