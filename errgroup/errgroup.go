// Package errgroup provides a goroutine group with shared error propagation
// and context cancellation, used by cmd/syncdemo to coordinate the producer
// and drain goroutines that drive the channel/semaphore/rwlock pipeline.
//
// It is adapted from the teacher's errgroup package (itself a close reading
// of golang.org/x/sync/errgroup) to the same shape used throughout this
// module: synchronous helpers over a sync.WaitGroup, no futures.
package errgroup

import (
	"context"
	"sync"
)

// Group runs a set of goroutines belonging to the same overall task,
// canceling an associated Context on the first error and reporting only
// that first error from Wait.
//
// The zero value is valid and does not cancel on error.
type Group struct {
	cancel func(error)

	wg sync.WaitGroup

	errOnce sync.Once
	err     error
}

// WithContext returns a new Group and an associated Context derived from
// ctx. The derived Context is canceled the first time a function passed to
// Go returns a non-nil error, or the first time Wait returns, whichever
// occurs first.
func WithContext(ctx context.Context) (*Group, context.Context) {
	ctx, cancel := context.WithCancelCause(ctx)
	return &Group{cancel: cancel}, ctx
}

// Wait blocks until all function calls from the Go method have returned,
// then returns the first non-nil error, if any.
func (g *Group) Wait() error {
	g.wg.Wait()
	if g.cancel != nil {
		g.cancel(g.err)
	}
	return g.err
}

// Go calls fn in a new goroutine. The first call to fn that returns a
// non-nil error cancels the group's Context and its error is the one
// returned by Wait; later errors are dropped.
func (g *Group) Go(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(); err != nil {
			g.errOnce.Do(func() {
				g.err = err
				if g.cancel != nil {
					g.cancel(g.err)
				}
			})
		}
	}()
}
