package llm

import (
	"context"
	"sync"
)

// RequestQueue serializes outbound completion calls process-wide so the
// provider sees at most Slots concurrent requests. Admission is strictly
// first-come-first-served: waiters are released in arrival order.
type RequestQueue struct {
	mu      sync.Mutex
	slots   int
	active  int
	waiters []chan struct{}
}

// NewRequestQueue creates a queue with the given number of concurrent
// slots. Zero or negative slots default to 1.
func NewRequestQueue(slots int) *RequestQueue {
	if slots <= 0 {
		slots = 1
	}
	return &RequestQueue{slots: slots}
}

// Acquire blocks until a slot is available or the context is cancelled.
// Callers must Release exactly once after a successful Acquire.
func (q *RequestQueue) Acquire(ctx context.Context) error {
	q.mu.Lock()
	if q.active < q.slots && len(q.waiters) == 0 {
		q.active++
		q.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	q.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		q.abandon(ready)
		return ctx.Err()
	}
}

// abandon removes a cancelled waiter, or releases the slot if the waiter
// was granted one concurrently with cancellation.
func (q *RequestQueue) abandon(ready chan struct{}) {
	q.mu.Lock()
	for i, w := range q.waiters {
		if w == ready {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			q.mu.Unlock()
			return
		}
	}
	// Not found: the slot was already granted. Hand it to the next waiter.
	q.releaseLocked()
	q.mu.Unlock()
}

// Release frees a slot, waking the oldest waiter if any.
func (q *RequestQueue) Release() {
	q.mu.Lock()
	q.releaseLocked()
	q.mu.Unlock()
}

func (q *RequestQueue) releaseLocked() {
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	if q.active > 0 {
		q.active--
	}
}

// Do runs fn while holding a queue slot.
func (q *RequestQueue) Do(ctx context.Context, fn func() error) error {
	if err := q.Acquire(ctx); err != nil {
		return err
	}
	defer q.Release()
	return fn()
}

// QueuedClient wraps a Client so every Complete call traverses the queue.
type QueuedClient struct {
	inner Client
	queue *RequestQueue
}

// NewQueuedClient wraps inner with queue admission.
func NewQueuedClient(inner Client, queue *RequestQueue) *QueuedClient {
	return &QueuedClient{inner: inner, queue: queue}
}

// Complete acquires a queue slot, then delegates to the wrapped client.
// Cancellation while queued surfaces as a timeout-kind RequestError.
func (c *QueuedClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := c.queue.Acquire(ctx); err != nil {
		return nil, &RequestError{Kind: FailureTimeout, Detail: "cancelled while queued: " + err.Error(), Cause: err}
	}
	defer c.queue.Release()
	return c.inner.Complete(ctx, messages)
}
