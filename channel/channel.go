// Package channel provides a multi-producer/multi-consumer, bounded or
// unbounded async FIFO channel, built from a mutex.Mutex guarding the
// buffer and a pair of condvar.Cond instances for backpressure and
// wakeup — the same layering spec.md describes for the original toolkit,
// just expressed with goroutines and context.Context instead of futures.
package channel

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/concurrency-kit/syncx/condvar"
	"github.com/concurrency-kit/syncx/mutex"
)

// state is the buffer guarded by the channel's mutex.
type state[T any] struct {
	items       []T
	capacity    int
	hasCapacity bool
}

func (s *state[T]) isEmpty() bool { return len(s.items) == 0 }

func (s *state[T]) isFull() bool {
	return s.hasCapacity && len(s.items) >= s.capacity
}

func (s *state[T]) pushBack(v T) {
	s.items = append(s.items, v)
}

func (s *state[T]) popFront() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	v := s.items[0]
	s.items[0] = zero // drop the reference so it can be GC'd
	s.items = s.items[1:]
	return v, true
}

// shared is the reference-counted state jointly owned by every Sender and
// Receiver handle for one channel.
type shared[T any] struct {
	state         *mutex.Mutex[state[T]]
	senderWait    *condvar.Cond[state[T]]
	receiverWait  *condvar.Cond[state[T]]
	disconnected  atomic.Bool
	senderCount   atomic.Int64
	receiverCount atomic.Int64
	log           *zap.Logger
}

// disconnect marks the channel permanently disconnected and wakes every
// goroutine parked in Send or Recv. Both condvars are notified regardless
// of which side triggered the disconnect: a sender-side disconnect must
// still wake blocked receivers so a drained recv can observe RecvError, and
// a receiver-side disconnect must still wake blocked senders so a pending
// send can observe SendError.
func (s *shared[T]) disconnect() {
	if s.disconnected.CompareAndSwap(false, true) {
		s.log.Debug("channel: disconnected")
		s.senderWait.NotifyAll()
		s.receiverWait.NotifyAll()
	}
}

func (s *shared[T]) isDisconnected() bool {
	return s.disconnected.Load()
}

// Option configures a channel at construction time.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger attaches a debug logger to the channel's lifecycle events.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func newShared[T any](capacity int, hasCapacity bool, opts ...Option) *shared[T] {
	o := &options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	sh := &shared[T]{
		state:        mutex.New(state[T]{capacity: capacity, hasCapacity: hasCapacity}),
		senderWait:   condvar.New[state[T]](),
		receiverWait: condvar.New[state[T]](),
		log:          o.log,
	}
	sh.senderCount.Store(1)
	sh.receiverCount.Store(1)
	return sh
}

// Unbounded creates a channel with no capacity limit, returning one Sender
// and one Receiver handle.
func Unbounded[T any](opts ...Option) (*Sender[T], *Receiver[T]) {
	sh := newShared[T](0, false, opts...)
	return &Sender[T]{shared: sh}, &Receiver[T]{shared: sh}
}

// Bounded creates a channel whose buffer holds at most capacity values,
// returning one Sender and one Receiver handle.
func Bounded[T any](capacity int, opts ...Option) (*Sender[T], *Receiver[T]) {
	sh := newShared[T](capacity, true, opts...)
	return &Sender[T]{shared: sh}, &Receiver[T]{shared: sh}
}

// SendError is returned by Send when the channel is disconnected; it
// carries the value back to the caller so it is never silently dropped.
type SendError[T any] struct {
	Value T
}

func (e *SendError[T]) Error() string {
	return "channel: send on disconnected channel"
}

// RecvError is returned by Recv when the channel is disconnected and its
// buffer has drained.
type RecvError struct{}

func (RecvError) Error() string {
	return "channel: recv on disconnected channel"
}

// Sender is a cloneable handle that can push values onto a channel.
type Sender[T any] struct {
	shared *shared[T]
}

// Clone returns a new Sender handle sharing the same channel, incrementing
// the live-sender count.
func (s *Sender[T]) Clone() *Sender[T] {
	s.shared.senderCount.Add(1)
	return &Sender[T]{shared: s.shared}
}

// Close retires this Sender handle. Once the last live Sender handle is
// closed, the channel becomes permanently disconnected and every blocked
// Recv is woken. Go has no destructors, so callers must Close every handle
// they hold (typically via defer) — there is no finalizer fallback.
func (s *Sender[T]) Close() {
	if s.shared.senderCount.Add(-1) == 0 {
		s.shared.disconnect()
	}
}

// Send pushes value onto the channel, blocking while a bounded channel's
// buffer is full. It returns a *SendError[T] carrying value back if the
// channel is (or becomes) disconnected, or ctx.Err() if ctx is done first —
// in the latter case the caller still owns value, since Go arguments are
// never moved out from under the caller the way the original's future-based
// API would consume it.
func (s *Sender[T]) Send(ctx context.Context, value T) error {
	g, err := s.shared.state.Lock(ctx)
	if err != nil {
		return err
	}
	if s.shared.isDisconnected() {
		g.Release()
		return &SendError[T]{Value: value}
	}

	for g.Value().isFull() && !s.shared.isDisconnected() {
		g, err = s.shared.senderWait.Wait(ctx, g)
		if err != nil {
			return err
		}
	}

	if s.shared.isDisconnected() {
		g.Release()
		return &SendError[T]{Value: value}
	}

	g.Value().pushBack(value)
	g.Release()

	// Wake one receiver for the new value, and conservatively nudge one
	// sender too: harmless because the wait loop re-checks isFull, and it
	// covers the case where another sender is waiting on a bounded channel
	// that just gained headroom from this push's companion recv.
	s.shared.receiverWait.NotifyOne()
	s.shared.senderWait.NotifyOne()
	return nil
}

// Receiver is a cloneable handle that can pop values from a channel.
type Receiver[T any] struct {
	shared *shared[T]
}

// Clone returns a new Receiver handle sharing the same channel,
// incrementing the live-receiver count.
func (r *Receiver[T]) Clone() *Receiver[T] {
	r.shared.receiverCount.Add(1)
	return &Receiver[T]{shared: r.shared}
}

// Close retires this Receiver handle. Once the last live Receiver handle is
// closed, the channel becomes permanently disconnected and every blocked
// Send is woken.
func (r *Receiver[T]) Close() {
	if r.shared.receiverCount.Add(-1) == 0 {
		r.shared.disconnect()
	}
}

// Recv pops the oldest value from the channel, blocking until one is
// available, the channel disconnects, or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	g, err := r.shared.state.Lock(ctx)
	if err != nil {
		return zero, err
	}
	for {
		if v, ok := g.Value().popFront(); ok {
			g.Release()
			r.shared.senderWait.NotifyOne()
			return v, nil
		}
		if r.shared.isDisconnected() {
			g.Release()
			return zero, RecvError{}
		}
		g, err = r.shared.receiverWait.Wait(ctx, g)
		if err != nil {
			return zero, err
		}
	}
}
