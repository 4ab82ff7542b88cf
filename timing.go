package bdsmlr

import (
	"sort"
	"sync"
	"time"
)

const (
	// timingWindow is the number of latency samples retained per endpoint.
	timingWindow = 20

	// timeoutHeadroom multiplies the observed latency estimate.
	timeoutHeadroom = 1.5

	// timeoutFloorRatio / timeoutCeilingRatio bound the adaptive timeout
	// relative to the endpoint's configured budget.
	timeoutFloorRatio   = 0.5
	timeoutCeilingRatio = 3.0

	// absoluteMinTimeout / absoluteMaxTimeout bound it in absolute terms.
	absoluteMinTimeout = 2 * time.Second
	absoluteMaxTimeout = 120 * time.Second

	// timeoutFeedbackBoost scales the threshold fed back after an aborted
	// request: the true duration is unknown but was at least the threshold.
	timeoutFeedbackBoost = 1.2
)

// timingRecord is a bounded ring of the most recent latency samples for one
// endpoint. Created lazily, never destroyed.
type timingRecord struct {
	samples []time.Duration
	next    int
	full    bool
}

func (r *timingRecord) add(d time.Duration) {
	if len(r.samples) < timingWindow {
		r.samples = append(r.samples, d)
		return
	}
	r.samples[r.next] = d
	r.next = (r.next + 1) % timingWindow
	r.full = true
}

// TimingEstimator tracks rolling latency per endpoint and derives adaptive
// timeouts. Endpoints consistently slower than their static budget earn more
// time; consistently fast ones are never throttled below the safety floor.
type TimingEstimator struct {
	mu      sync.Mutex
	records map[Endpoint]*timingRecord
}

// NewTimingEstimator creates an estimator with no history.
func NewTimingEstimator() *TimingEstimator {
	return &TimingEstimator{records: make(map[Endpoint]*timingRecord)}
}

// Record stores an observed call duration, success or failure alike.
func (te *TimingEstimator) Record(endpoint Endpoint, d time.Duration) {
	te.mu.Lock()
	defer te.mu.Unlock()

	r, ok := te.records[endpoint]
	if !ok {
		r = &timingRecord{}
		te.records[endpoint] = r
	}
	r.add(d)
}

// RecordTimeoutAt feeds back an aborted request. The observed duration is
// boosted slightly above the threshold so a chronically timing-out endpoint
// is never underestimated.
func (te *TimingEstimator) RecordTimeoutAt(endpoint Endpoint, threshold time.Duration) {
	te.Record(endpoint, time.Duration(float64(threshold)*timeoutFeedbackBoost))
}

// AdaptiveTimeout computes the request deadline for an endpoint:
// clamp(max(average, p95) × headroom, floor, ceiling) where
// floor = max(absolute min, configured × floor ratio) and
// ceiling = min(absolute max, configured × ceiling ratio).
// With no history the configured budget is returned unchanged.
func (te *TimingEstimator) AdaptiveTimeout(endpoint Endpoint, configured time.Duration) time.Duration {
	te.mu.Lock()
	r, ok := te.records[endpoint]
	var samples []time.Duration
	if ok && len(r.samples) > 0 {
		samples = append(samples, r.samples...)
	}
	te.mu.Unlock()

	if len(samples) == 0 {
		return configured
	}

	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	avg := sum / time.Duration(len(samples))

	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (len(sorted)*95 + 99) / 100
	if idx > len(sorted) {
		idx = len(sorted)
	}
	p95 := sorted[idx-1]

	estimate := avg
	if p95 > estimate {
		estimate = p95
	}
	timeout := time.Duration(float64(estimate) * timeoutHeadroom)

	floor := time.Duration(float64(configured) * timeoutFloorRatio)
	if floor < absoluteMinTimeout {
		floor = absoluteMinTimeout
	}
	ceiling := time.Duration(float64(configured) * timeoutCeilingRatio)
	if ceiling > absoluteMaxTimeout {
		ceiling = absoluteMaxTimeout
	}
	if ceiling < floor {
		ceiling = floor
	}

	if timeout < floor {
		timeout = floor
	}
	if timeout > ceiling {
		timeout = ceiling
	}
	return timeout
}
