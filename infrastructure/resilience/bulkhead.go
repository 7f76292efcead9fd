package resilience

import (
	"context"
	"errors"
)

// ErrBulkheadFull is returned when a bulkhead's queue is also saturated.
var ErrBulkheadFull = errors.New("bulkhead queue is full")

// Bulkhead limits the number of concurrent executions of a protected
// operation, with a bounded wait queue for callers that arrive once the
// concurrency limit is reached.
type Bulkhead struct {
	sem   chan struct{}
	queue chan struct{}
}

// NewBulkhead creates a Bulkhead allowing maxConcurrent simultaneous calls
// and queueing up to maxQueue additional waiting callers.
func NewBulkhead(maxConcurrent, maxQueue int) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxQueue < 0 {
		maxQueue = 0
	}
	return &Bulkhead{
		sem:   make(chan struct{}, maxConcurrent),
		queue: make(chan struct{}, maxQueue),
	}
}

// Execute runs fn once a concurrency slot is available. If the concurrency
// limit and the queue are both full, it returns ErrBulkheadFull immediately
// rather than blocking indefinitely.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	select {
	case b.sem <- struct{}{}:
		defer func() { <-b.sem }()
		return fn()
	default:
	}

	select {
	case b.queue <- struct{}{}:
		defer func() { <-b.queue }()
	default:
		return ErrBulkheadFull
	}

	select {
	case b.sem <- struct{}{}:
		defer func() { <-b.sem }()
		return fn()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InUse returns the number of currently occupied concurrency slots.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// Queued returns the number of callers currently waiting in the queue.
func (b *Bulkhead) Queued() int {
	return len(b.queue)
}
