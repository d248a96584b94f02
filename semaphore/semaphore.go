// Package semaphore provides a fair, cancel-safe async counting semaphore.
//
// A Semaphore maintains a set of permits. Each Acquire call blocks until
// enough permits are available and then takes them; each Release call adds
// permits back, potentially waking a blocked Acquire. Unlike sync.Mutex,
// waiters are served strictly first-come-first-served: a non-blocking
// TryAcquire never jumps ahead of a goroutine already parked in Acquire,
// which is what lets rwlock build a write-preferring lock on top of this
// package.
//
// The implementation follows the same container/list waiter-queue shape as
// golang.org/x/sync/semaphore.Weighted, extended with batch Forget and
// scoped Permit handles.
package semaphore

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/concurrency-kit/syncx/internal/lock"
)

// state a waiter can be in while queued.
type waiterState int

const (
	waiterQueued waiterState = iota
	waiterNotified
)

// waiter is a single entry in the FIFO queue of blocked acquirers.
type waiter struct {
	id     string
	needed uint64
	ready  chan struct{} // closed when the waiter has been handed its permits
	state  waiterState
}

// Semaphore is a fair counting semaphore. The zero value is not usable; use
// New.
type Semaphore struct {
	mu      lock.Mutex
	permits uint64
	waiters list.List // of *waiter

	log *zap.Logger
}

// Option configures a Semaphore at construction time.
type Option func(*Semaphore)

// WithLogger attaches a debug logger. The default is a no-op logger, so
// logging is entirely opt-in and never on the hot path unless requested.
func WithLogger(log *zap.Logger) Option {
	return func(s *Semaphore) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a semaphore with the given number of permits.
func New(permits uint64, opts ...Option) *Semaphore {
	s := &Semaphore{permits: permits, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AvailablePermits returns the current number of permits available. There is
// no ordering guarantee relative to pending acquirers: a concurrent Acquire
// may consume the observed permits before the caller acts on this value.
func (s *Semaphore) AvailablePermits() uint64 {
	return lock.With(&s.mu, func() uint64 { return s.permits })
}

// TryAcquire attempts to acquire n permits without blocking. It only
// succeeds when the waiter queue is empty and enough permits are free; this
// strict "empty queue" check is what keeps the semaphore fair, since a
// non-blocking attempt never cuts in front of a goroutine already parked in
// Acquire.
func (s *Semaphore) TryAcquire(n uint64) (*Permit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiters.Len() == 0 && s.permits >= n {
		s.permits -= n
		return &Permit{sem: s, permits: n}, true
	}
	return nil, false
}

// Acquire blocks until n permits are available, or ctx is done first. On
// success it returns a Permit that returns the permits to the semaphore when
// Release is called.
//
// Cancel safety: if ctx is canceled while Acquire is parked, the waiter is
// removed from the queue and loses its place; re-calling Acquire enqueues at
// the tail again. If the waiter had already been credited permits by a
// concurrent Release by the time cancellation is observed, Acquire ignores
// the cancellation and returns the permit instead of leaking it.
func (s *Semaphore) Acquire(ctx context.Context, n uint64) (*Permit, error) {
	s.mu.Lock()
	if s.waiters.Len() == 0 && s.permits >= n {
		s.permits -= n
		s.mu.Unlock()
		return &Permit{sem: s, permits: n}, nil
	}

	w := &waiter{id: uuid.NewString(), needed: n, ready: make(chan struct{}), state: waiterQueued}
	elem := s.waiters.PushBack(w)
	s.mu.Unlock()

	s.log.Debug("semaphore: waiter enqueued", zap.String("waiter_id", w.id), zap.Uint64("needed", n))

	select {
	case <-ctx.Done():
		err := ctx.Err()
		s.mu.Lock()
		select {
		case <-w.ready:
			// Already satisfied by a concurrent Release; pretend we never
			// noticed the cancellation rather than leak the credited permits.
			err = nil
		default:
			wasFront := s.waiters.Front() == elem
			s.waiters.Remove(elem)
			// Removing the front waiter can unblock a successor that was
			// stuck behind it: permits accumulate under the
			// whole-credit-or-nothing policy whenever the head isn't yet
			// satisfiable, so the new head may already be satisfiable with
			// what's on hand. Re-run the notify pass so that successor is
			// never stranded.
			if wasFront && s.permits > 0 {
				s.notifyWaiters()
			}
		}
		s.mu.Unlock()
		if err != nil {
			s.log.Debug("semaphore: waiter canceled", zap.String("waiter_id", w.id))
			return nil, errors.Wrap(err, "semaphore: acquire canceled")
		}
	case <-w.ready:
	}

	s.log.Debug("semaphore: waiter resumed", zap.String("waiter_id", w.id))
	return &Permit{sem: s, permits: n}, nil
}

// Release returns n permits to the semaphore, waking queued waiters in FIFO
// order as long as each head waiter is fully satisfiable. It panics if doing
// so would overflow the internal uint64 counter; that is a programming error,
// not a recoverable one. Releasing more permits than were ever outstanding is
// not otherwise detected.
func (s *Semaphore) Release(n uint64) {
	lock.WithVoid(&s.mu, func() { s.release(n) })
}

func (s *Semaphore) release(n uint64) {
	if s.permits > math.MaxUint64-n {
		panic(errors.Errorf("semaphore: release overflow: permits=%d released=%d", s.permits, n).Error())
	}
	s.permits += n
	s.notifyWaiters()
}

// notifyWaiters hands permits to queued waiters from the head while the head
// is fully satisfiable, then stops. This whole-credit-or-nothing policy
// means a large request is never starved by a stream of small releases, and
// is exactly what lets rwlock's writer (which needs maxReaders permits at
// once) make forward progress against a flood of one-permit readers.
func (s *Semaphore) notifyWaiters() {
	for {
		front := s.waiters.Front()
		if front == nil {
			return
		}
		w := front.Value.(*waiter)
		if s.permits < w.needed {
			return
		}
		s.permits -= w.needed
		s.waiters.Remove(front)
		w.state = waiterNotified
		close(w.ready)
	}
}

// Forget permanently removes up to n permits from the semaphore without
// enqueuing a waiter, returning the number actually removed. It never
// blocks and never wakes a waiter (removing capacity can only ever make
// waiters less satisfiable).
func (s *Semaphore) Forget(n uint64) uint64 {
	return lock.With(&s.mu, func() uint64 {
		removed := n
		if removed > s.permits {
			removed = s.permits
		}
		s.permits -= removed
		return removed
	})
}

// Permit is a scoped handle returned by Acquire/TryAcquire. It is settled
// exactly once: Release returns its permits to the semaphore, while Forget
// discards them without returning them. Go has no destructors, so callers must defer
// Release() (or Forget()) themselves immediately after a successful
// acquire — there is no background finalizer to fall back on.
type Permit struct {
	sem     *Semaphore
	permits uint64
	mu      sync.Mutex
	done    bool
}

// Permits returns the number of permits this handle holds.
func (p *Permit) Permits() uint64 {
	return p.permits
}

// Release returns the held permits to the semaphore. It is safe to call more
// than once; only the first call has an effect.
func (p *Permit) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	if p.permits > 0 {
		p.sem.Release(p.permits)
	}
}

// Forget releases the handle without returning its permits to the
// semaphore, permanently shrinking the semaphore's capacity by the amount
// this permit held.
func (p *Permit) Forget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	p.permits = 0
}
