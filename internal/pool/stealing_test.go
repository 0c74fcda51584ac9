package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestStealingPoolExecutesAllTasks tests that every submitted task runs
// exactly once, regardless of which worker's deque it lands on.
func TestStealingPoolExecutesAllTasks(t *testing.T) {
	t.Parallel()

	p := NewStealingPool(StealingConfig{NumWorkers: 4})
	defer p.Shutdown()

	const n = 500
	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		p.Execute(func() {
			count.Add(1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not all tasks ran")
	}

	require.EqualValues(t, n, count.Load())
}

// TestStealingPoolCompletesBurstAcrossWorkers tests that a burst of tasks
// spread round-robin over eight workers all run. It does not observe which
// worker ran each task.
func TestStealingPoolCompletesBurstAcrossWorkers(t *testing.T) {
	t.Parallel()

	p := NewStealingPool(StealingConfig{NumWorkers: 8})
	defer p.Shutdown()

	const n = 200
	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)

	// Submit everything before any worker has a chance to drain its
	// own deque, so round-robin placement spreads work and idle
	// workers must steal to help finish quickly.
	for i := 0; i < n; i++ {
		p.Execute(func() {
			count.Add(1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stealing pool did not complete all tasks in time")
	}

	require.EqualValues(t, n, count.Load())
}

// TestStealingPoolSupportsCancellationIsFalse tests the variant A
// invariant: no ownership tracking, cancel is always a no-op.
func TestStealingPoolSupportsCancellationIsFalse(t *testing.T) {
	t.Parallel()

	p := NewStealingPool(StealingConfig{NumWorkers: 2})
	defer p.Shutdown()

	require.False(t, p.SupportsCancellation())
	require.Equal(t, 0, p.CancelForOwner("anyone"))
	require.Equal(t, 0, p.PendingForOwner("anyone"))
}

// TestStealingPoolClosedReflectsShutdown tests that Closed only reports
// true once Shutdown has been called.
func TestStealingPoolClosedReflectsShutdown(t *testing.T) {
	t.Parallel()

	p := NewStealingPool(StealingConfig{NumWorkers: 1})
	require.False(t, p.Closed())

	p.Shutdown()
	require.True(t, p.Closed())
}

// TestStealingPoolShutdownAwaitsWorkers tests that AwaitTermination returns
// once all workers have exited after Shutdown.
func TestStealingPoolShutdownAwaitsWorkers(t *testing.T) {
	t.Parallel()

	p := NewStealingPool(StealingConfig{NumWorkers: 3})

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		p.Execute(func() { ran.Add(1) })
	}

	p.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.AwaitTermination(ctx)
	require.NoError(t, err)
}

// TestStealingPoolZeroWorkersDefaultsToOne tests that a non-positive
// NumWorkers falls back to a single worker.
func TestStealingPoolZeroWorkersDefaultsToOne(t *testing.T) {
	t.Parallel()

	p := NewStealingPool(StealingConfig{NumWorkers: 0})
	defer p.Shutdown()

	done := make(chan struct{})
	p.Execute(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}
