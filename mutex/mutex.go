// Package mutex provides a fair async mutual-exclusion lock, conceptually a
// semaphore.Semaphore initialized with a single permit.
package mutex

import (
	"context"

	"github.com/concurrency-kit/syncx/semaphore"
)

// Mutex is a fair, cancel-safe mutual-exclusion lock guarding a value of
// type T. The zero value is not usable; use New.
type Mutex[T any] struct {
	sem   *semaphore.Semaphore
	value T
}

// New creates a Mutex holding value, initially unlocked.
func New[T any](value T, opts ...semaphore.Option) *Mutex[T] {
	return &Mutex[T]{sem: semaphore.New(1, opts...), value: value}
}

// Lock blocks until the mutex is acquired or ctx is done, returning a Guard
// on success. Fairness (FIFO ordering among blocked lockers) is inherited
// from the underlying semaphore.
func (m *Mutex[T]) Lock(ctx context.Context) (*Guard[T], error) {
	permit, err := m.sem.Acquire(ctx, 1)
	if err != nil {
		return nil, err
	}
	return &Guard[T]{m: m, permit: permit}, nil
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex[T]) TryLock() (*Guard[T], bool) {
	permit, ok := m.sem.TryAcquire(1)
	if !ok {
		return nil, false
	}
	return &Guard[T]{m: m, permit: permit}, true
}

// Guard is the scoped handle returned by Lock/TryLock. It must be released
// exactly once via Release, typically with defer immediately after a
// successful Lock — Go has no destructor to do this automatically.
type Guard[T any] struct {
	m      *Mutex[T]
	permit *semaphore.Permit
}

// Value returns a pointer to the guarded value for reading or mutation
// while the guard is held.
func (g *Guard[T]) Value() *T {
	return &g.m.value
}

// Mutex returns the Mutex this guard was issued from, so that companion
// types (condvar.Cond) can re-lock it after a wait without depending on
// Mutex internals.
func (g *Guard[T]) Mutex() *Mutex[T] {
	return g.m
}

// Release unlocks the mutex. Safe to call more than once; only the first
// call has an effect.
func (g *Guard[T]) Release() {
	g.permit.Release()
}
