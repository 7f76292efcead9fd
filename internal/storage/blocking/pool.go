// Package blocking offloads blocking database calls onto a bounded set of
// goroutines so a caller driving an event loop (a scheduler tick, an HTTP
// handler) never blocks directly on cgo-backed SQLite I/O. It plays the
// role the source database layer gives to task::spawn_blocking.
package blocking

import (
	"context"
	"sync"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
)

// Pool runs submitted work on a fixed-size goroutine pool. Submit blocks the
// caller until either the work completes or ctx is cancelled; the work
// itself keeps running in the background even if the caller stops waiting,
// mirroring spawn_blocking's detached-task semantics.
type Pool struct {
	sem chan struct{}

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewPool creates a pool with at most size concurrent in-flight jobs.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size), closeCh: make(chan struct{})}
}

// Run submits fn, blocks the caller until it finishes, ctx is cancelled, or
// the pool is closed, and returns fn's error (or the reason the caller
// stopped waiting).
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	select {
	case <-ctx.Done():
		return zero, apperrors.HTTPTimeout("blocking_pool_acquire", ctx.Err())
	case <-p.closeCh:
		return zero, apperrors.Internal("blocking pool is closed", nil)
	case p.sem <- struct{}{}:
	}
	defer func() { <-p.sem }()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val, err}
	}()

	select {
	case <-ctx.Done():
		return zero, apperrors.HTTPTimeout("blocking_pool_wait", ctx.Err())
	case r := <-done:
		return r.val, r.err
	}
}

// Close marks the pool closed; in-flight jobs are left to finish, but new
// submissions fail immediately.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.closeCh)
}
