package lock_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concurrency-kit/syncx/internal/lock"
)

func TestWithReturnsValue(t *testing.T) {
	var m lock.Mutex
	got := lock.With(&m, func() int { return 42 })
	require.Equal(t, 42, got)
}

func TestWithSerializesAccess(t *testing.T) {
	var m lock.Mutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.WithVoid(&m, func() { counter++ })
		}()
	}
	wg.Wait()

	require.Equal(t, 100, counter)
}

func TestLockUnlockDirect(t *testing.T) {
	var m lock.Mutex
	m.Lock()
	m.Unlock()
}
