// Package lock provides a tiny synchronous mutex used internally by the
// other packages in this module to protect short critical sections (waiter
// queues, buffers). It is never held across a suspension point.
package lock

import "sync"

// Mutex guards a critical section with sync.Mutex and guarantees release on
// every exit path, including panics.
type Mutex struct {
	mu sync.Mutex
}

// With runs fn while holding the lock, releasing it even if fn panics.
func With[R any](m *Mutex, fn func() R) R {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}

// WithVoid is With for closures with no return value.
func WithVoid(m *Mutex, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// Lock and Unlock are exposed directly for call sites that must release the
// lock before a suspension point (e.g. before parking on a channel), where
// the closure-based With would hold the lock too long.
func (m *Mutex) Lock()   { m.mu.Lock() }
func (m *Mutex) Unlock() { m.mu.Unlock() }
