// Package limiter bounds concurrent upstream work: a FIFO counting semaphore
// for process-wide call concurrency, a per-client admission gate, and a retry
// runner implementing the shared throttle backoff schedule.
package limiter

import (
	"container/list"
	"context"
	"sync"
)

// Limiter is a counting semaphore with a FIFO wait queue. Callers beyond the
// capacity wait in arrival order; Release wakes the oldest waiter.
type Limiter struct {
	mu      sync.Mutex
	active  int
	limit   int
	waiters *list.List // of chan struct{}
}

func New(limit int) *Limiter {
	if limit < 1 {
		limit = 1
	}
	return &Limiter{limit: limit, waiters: list.New()}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.active < l.limit {
		l.active++
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := l.waiters.PushBack(ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-ready:
			// Woken concurrently with cancellation: the slot is ours, give
			// it back so the next waiter runs.
			l.mu.Unlock()
			l.Release()
		default:
			l.waiters.Remove(elem)
			l.mu.Unlock()
		}
		return ctx.Err()
	}
}

// Release frees a slot and hands it to the oldest waiter, if any.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if elem := l.waiters.Front(); elem != nil {
		l.waiters.Remove(elem)
		close(elem.Value.(chan struct{}))
		return
	}
	if l.active > 0 {
		l.active--
	}
}

// Run executes fn inside an acquired slot, releasing it on every exit path.
func (l *Limiter) Run(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
