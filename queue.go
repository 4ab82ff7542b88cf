package bdsmlr

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultQueueCapacity = 50

	// queueDrainDelay spaces drained requests out so a reconnect does not
	// stampede the backend.
	queueDrainDelay = 250 * time.Millisecond

	// queueMaxRetries bounds how many drain cycles a request survives.
	queueMaxRetries = 3
)

// ConnectivitySignal reports whether the network is reachable and notifies on
// transitions. Implementations decide what "online" means; the client only
// reacts to the edges.
type ConnectivitySignal interface {
	Online() bool
	// Subscribe registers fn to run on every connectivity transition. The
	// returned cancel detaches the subscription.
	Subscribe(fn func(online bool)) (cancel func())
}

// alwaysOnline is the default signal: no connectivity integration, never
// offline.
type alwaysOnline struct{}

func (alwaysOnline) Online() bool                              { return true }
func (alwaysOnline) Subscribe(func(online bool)) (cancel func()) { return func() {} }

// QueuedRequest is one deferred operation awaiting connectivity.
type QueuedRequest struct {
	ID          string
	Description string

	// Execute performs the deferred call when the network returns.
	Execute func(ctx context.Context) error

	// OnSuccess and OnFailure report the eventual outcome. Either may be nil.
	OnSuccess func()
	OnFailure func(err error)

	QueuedAt   time.Time
	retryCount int
}

// RetryQueue holds requests that failed offline and replays them in FIFO
// order once connectivity returns. The queue is bounded: at capacity the
// oldest entry is evicted and failed with ErrQueueOverflow.
type RetryQueue struct {
	mu       sync.Mutex
	items    []*QueuedRequest
	capacity int
	draining bool

	metrics *MetricsCollector
	logger  Logger
	debug   *DebugConfig

	now func() time.Time
}

// NewRetryQueue creates a queue with the given capacity; zero or negative
// means the default.
func NewRetryQueue(capacity int) *RetryQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &RetryQueue{capacity: capacity, now: time.Now}
}

// Enqueue adds a deferred request, evicting the oldest entry when full.
func (q *RetryQueue) Enqueue(req *QueuedRequest) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.QueuedAt = q.now()

	var evicted *QueuedRequest
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		evicted = q.items[0]
		q.items = q.items[1:]
	}
	q.items = append(q.items, req)
	depth := len(q.items)
	q.mu.Unlock()

	q.metrics.RecordRetryQueueDepth(depth)
	q.logQueue("Queued request for retry", req, depth)

	if evicted != nil {
		q.logQueue("Evicted oldest queued request", evicted, depth)
		if evicted.OnFailure != nil {
			evicted.OnFailure(ErrQueueOverflow)
		}
	}
}

// Len returns the current queue depth.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain replays queued requests in order. Replays are serialized and spaced
// by a small delay. A request failing with a transient error is re-queued
// until its retry budget runs out; draining stops early if online() turns
// false mid-drain. Concurrent Drain calls collapse into one.
func (q *RetryQueue) Drain(ctx context.Context, online func() bool) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if online != nil && !online() {
			return
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			q.metrics.RecordRetryQueueDepth(0)
			return
		}
		req := q.items[0]
		q.items = q.items[1:]
		depth := len(q.items)
		q.mu.Unlock()
		q.metrics.RecordRetryQueueDepth(depth)

		err := req.Execute(ctx)
		switch {
		case err == nil:
			q.logQueue("Replayed queued request", req, depth)
			if req.OnSuccess != nil {
				req.OnSuccess()
			}

		case KindOf(err) == ErrorKindOffline:
			// Connectivity dropped again: push back without consuming the
			// retry budget and stop.
			q.pushFront(req)
			return

		case IsTransient(err) && req.retryCount < queueMaxRetries:
			req.retryCount++
			q.logQueue("Re-queueing after transient failure", req, depth)
			q.pushBack(req)

		default:
			failure := err
			if IsTransient(err) {
				failure = ErrQueueRetriesExhausted
			}
			q.logQueue("Dropping queued request", req, depth)
			if req.OnFailure != nil {
				req.OnFailure(failure)
			}
		}

		if err := sleepCtx(ctx, queueDrainDelay); err != nil {
			return
		}
	}
}

func (q *RetryQueue) pushFront(req *QueuedRequest) {
	q.mu.Lock()
	q.items = append([]*QueuedRequest{req}, q.items...)
	depth := len(q.items)
	q.mu.Unlock()
	q.metrics.RecordRetryQueueDepth(depth)
}

func (q *RetryQueue) pushBack(req *QueuedRequest) {
	q.mu.Lock()
	q.items = append(q.items, req)
	depth := len(q.items)
	q.mu.Unlock()
	q.metrics.RecordRetryQueueDepth(depth)
}

func (q *RetryQueue) logQueue(msg string, req *QueuedRequest, depth int) {
	if q.debug != nil && q.debug.Enabled && q.debug.LogQueue && q.logger != nil {
		q.logger.Debug(msg, "id", req.ID, "description", req.Description, "depth", depth)
	}
}
