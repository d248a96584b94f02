// Package rwlock provides a write-preferring async reader-writer lock built
// directly on top of semaphore.Semaphore: a writer acquires every permit at
// once, a reader acquires one. Because the underlying semaphore serves its
// FIFO queue with a whole-credit-or-nothing policy, a writer parked at the
// head of the queue blocks every reader that arrives after it — the
// write-preferring property spec.md requires.
package rwlock

import (
	"context"
	"math"

	"github.com/concurrency-kit/syncx/semaphore"
)

// defaultMaxReaders is large enough to never be a practical limit on
// concurrent readers, while leaving headroom so a writer's request for
// exactly maxReaders permits can never overflow the semaphore's internal
// uint64 counter.
const defaultMaxReaders = math.MaxUint32 >> 1

// RWLock is a write-preferring reader-writer lock guarding a value of type
// T. The zero value is not usable; use New or WithMaxReaders.
type RWLock[T any] struct {
	maxReaders uint64
	sem        *semaphore.Semaphore
	value      T
}

// New creates an RWLock holding value, with a default reader capacity high
// enough to never be a practical concern.
func New[T any](value T, opts ...semaphore.Option) *RWLock[T] {
	return WithMaxReaders(value, defaultMaxReaders, opts...)
}

// WithMaxReaders creates an RWLock holding value, capping the number of
// concurrent readers at maxReaders. This is mainly useful for tests that
// want to exercise writer-preference without waiting for a very large
// semaphore request to build up.
func WithMaxReaders[T any](value T, maxReaders uint64, opts ...semaphore.Option) *RWLock[T] {
	return &RWLock[T]{
		maxReaders: maxReaders,
		sem:        semaphore.New(maxReaders, opts...),
		value:      value,
	}
}

// Read blocks until a shared read permit is available or ctx is done.
//
// Deadlock hazard: because this lock is write-preferring, a writer queued
// behind an outstanding read guard blocks every reader that arrives after
// it, including a second read acquired reentrantly by the same goroutine.
// Callers must never acquire a second Read while already holding one on the
// same RWLock.
func (l *RWLock[T]) Read(ctx context.Context) (*ReadGuard[T], error) {
	permit, err := l.sem.Acquire(ctx, 1)
	if err != nil {
		return nil, err
	}
	return &ReadGuard[T]{lock: l, permit: permit}, nil
}

// TryRead attempts to acquire a shared read permit without blocking.
func (l *RWLock[T]) TryRead() (*ReadGuard[T], bool) {
	permit, ok := l.sem.TryAcquire(1)
	if !ok {
		return nil, false
	}
	return &ReadGuard[T]{lock: l, permit: permit}, true
}

// Write blocks until every outstanding reader and writer has released and
// ctx is not yet done, then returns an exclusive guard.
func (l *RWLock[T]) Write(ctx context.Context) (*WriteGuard[T], error) {
	permit, err := l.sem.Acquire(ctx, l.maxReaders)
	if err != nil {
		return nil, err
	}
	return &WriteGuard[T]{lock: l, permit: permit}, nil
}

// TryWrite attempts to acquire exclusive write access without blocking.
func (l *RWLock[T]) TryWrite() (*WriteGuard[T], bool) {
	permit, ok := l.sem.TryAcquire(l.maxReaders)
	if !ok {
		return nil, false
	}
	return &WriteGuard[T]{lock: l, permit: permit}, true
}

// ReadGuard is the scoped shared-access handle returned by Read/TryRead. It
// must be released exactly once via Release, typically with defer.
type ReadGuard[T any] struct {
	lock   *RWLock[T]
	permit *semaphore.Permit
}

// Value returns a pointer to the guarded value for shared observation.
// Callers must not mutate through it while other readers may be observing
// concurrently.
func (g *ReadGuard[T]) Value() *T {
	return &g.lock.value
}

// Release drops this read guard. Safe to call more than once; only the
// first call has an effect.
func (g *ReadGuard[T]) Release() {
	g.permit.Release()
}

// WriteGuard is the scoped exclusive-access handle returned by
// Write/TryWrite. It must be released exactly once via Release, typically
// with defer.
type WriteGuard[T any] struct {
	lock   *RWLock[T]
	permit *semaphore.Permit
}

// Value returns a pointer to the guarded value for exclusive mutation.
func (g *WriteGuard[T]) Value() *T {
	return &g.lock.value
}

// Release drops this write guard. Safe to call more than once; only the
// first call has an effect.
func (g *WriteGuard[T]) Release() {
	g.permit.Release()
}
