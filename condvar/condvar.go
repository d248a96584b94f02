// Package condvar provides an async condition variable that pairs with
// mutex.Mutex, mirroring the Wait/NotifyOne/NotifyAll contract of a
// classic condition variable but parking goroutines instead of OS threads.
package condvar

import (
	"container/list"
	"context"

	"github.com/concurrency-kit/syncx/internal/lock"
	"github.com/concurrency-kit/syncx/mutex"
)

// Cond is a condition variable associated with values guarded by
// mutex.Mutex[T]. The zero value is ready to use.
type Cond[T any] struct {
	mu      lock.Mutex
	waiters list.List // of *condWaiter
}

type condWaiter struct {
	ch chan struct{}
}

// New creates a ready-to-use condition variable.
func New[T any]() *Cond[T] {
	return &Cond[T]{}
}

// Wait atomically registers the calling goroutine on the condvar's waiter
// list and releases g, then parks until notified or ctx is done. On
// resumption it re-acquires the mutex before returning, handing back a
// fresh Guard. Spurious wakeups are possible; callers must re-check their
// predicate in a loop, as with any condition variable.
//
// The caller must be holding g, the companion mutex's guard, when calling
// Wait.
func (c *Cond[T]) Wait(ctx context.Context, g *mutex.Guard[T]) (*mutex.Guard[T], error) {
	w := &condWaiter{ch: make(chan struct{})}
	c.mu.Lock()
	elem := c.waiters.PushBack(w)
	c.mu.Unlock()

	// The wait must be registered before the mutex is released, so that a
	// NotifyOne/NotifyAll racing with this call can never run entirely
	// between "we released the lock" and "we started waiting" and get lost.
	g.Release()

	select {
	case <-ctx.Done():
		err := ctx.Err()
		c.mu.Lock()
		select {
		case <-w.ch:
			// Already notified; ignore the cancellation rather than drop
			// the wakeup on the floor.
			err = nil
		default:
			c.waiters.Remove(elem)
		}
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
	case <-w.ch:
	}

	return g.Mutex().Lock(ctx)
}

// NotifyOne wakes at most one waiter. A notification with no waiters queued
// is discarded, not stored.
func (c *Cond[T]) NotifyOne() {
	c.mu.Lock()
	defer c.mu.Unlock()
	front := c.waiters.Front()
	if front == nil {
		return
	}
	w := c.waiters.Remove(front).(*condWaiter)
	close(w.ch)
}

// NotifyAll wakes every waiter currently queued.
func (c *Cond[T]) NotifyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		front := c.waiters.Front()
		if front == nil {
			return
		}
		w := c.waiters.Remove(front).(*condWaiter)
		close(w.ch)
	}
}
