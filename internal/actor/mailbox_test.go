package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJob(val int) job {
	return job{
		run: func(ctx context.Context) (any, error) {
			return val, nil
		},
	}
}

// TestMailboxSendReceive tests that send delivers a job and receive yields
// it in order.
func TestMailboxSendReceive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mb := newMailbox(actorCtx, 10)
	defer mb.close()

	ok := mb.send(ctx, newTestJob(42))
	require.True(t, ok, "send should succeed")

	for j := range mb.receive(ctx) {
		val, err := j.run(ctx)
		require.NoError(t, err)
		require.Equal(t, 42, val)
		break
	}
}

// TestMailboxSendToClosed tests that send fails once the mailbox is closed.
func TestMailboxSendToClosed(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := newMailbox(actorCtx, 10)
	mb.close()

	ok := mb.send(context.Background(), newTestJob(1))
	require.False(t, ok, "send to closed mailbox should fail")
}

// TestMailboxSendContextCancelled tests that send fails immediately when the
// caller's context is already cancelled.
func TestMailboxSendContextCancelled(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := newMailbox(actorCtx, 1)
	defer mb.close()

	ok := mb.send(context.Background(), newTestJob(1))
	require.True(t, ok, "first send should fill the mailbox")

	cancelledCtx, cancelNow := context.WithCancel(context.Background())
	cancelNow()

	ok = mb.send(cancelledCtx, newTestJob(2))
	require.False(t, ok, "send with cancelled context should fail")
}

// TestMailboxSendActorContextCancelled tests that send fails once the
// actor's own context is cancelled, independent of the caller's context.
func TestMailboxSendActorContextCancelled(t *testing.T) {
	t.Parallel()

	actorCtx, actorCancel := context.WithCancel(context.Background())

	mb := newMailbox(actorCtx, 1)
	defer mb.close()

	ok := mb.send(context.Background(), newTestJob(1))
	require.True(t, ok)

	actorCancel()

	ok = mb.send(context.Background(), newTestJob(2))
	require.False(t, ok, "send should fail once actor context is cancelled")
}

// TestMailboxDrainAfterClose tests that drain yields every job still queued
// once the mailbox has been closed, and nothing before that.
func TestMailboxDrainAfterClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mb := newMailbox(actorCtx, 10)

	for i := 0; i < 5; i++ {
		require.True(t, mb.send(ctx, newTestJob(i)))
	}

	require.Empty(t, collectDrain(t, mb), "drain before close should yield nothing")

	mb.close()

	vals := collectDrain(t, mb)
	require.Len(t, vals, 5)
}

func collectDrain(t *testing.T, mb *mailbox) []int {
	t.Helper()

	var vals []int
	for j := range mb.drain() {
		val, err := j.run(context.Background())
		require.NoError(t, err)
		vals = append(vals, val.(int))
	}
	return vals
}

// TestMailboxClearPending tests that clearPending discards only queued jobs
// and reports how many were discarded.
func TestMailboxClearPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mb := newMailbox(actorCtx, 10)
	defer mb.close()

	for i := 0; i < 3; i++ {
		require.True(t, mb.send(ctx, newTestJob(i)))
	}

	n := mb.clearPending()
	require.Equal(t, 3, n)
	require.Equal(t, 0, mb.clearPending())
}

// TestMailboxConcurrentSends tests that many goroutines can send
// concurrently without panics or lost messages.
func TestMailboxConcurrentSends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	const senders = 10
	const perSender = 50
	total := senders * perSender

	mb := newMailbox(actorCtx, total)
	defer mb.close()

	var wg sync.WaitGroup
	wg.Add(senders)

	for i := 0; i < senders; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				require.True(t, mb.send(ctx, newTestJob(j)))
			}
		}()
	}

	wg.Wait()

	received := 0
	for range mb.receive(ctx) {
		received++
		if received == total {
			break
		}
	}
	require.Equal(t, total, received)
}

// TestMailboxReceiveStopsOnContextCancel tests that the receive iterator
// exits once its context is cancelled.
func TestMailboxReceiveStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := newMailbox(actorCtx, 10)
	defer mb.close()

	receiveCtx, receiveCancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range mb.receive(receiveCtx) {
		}
	}()

	receiveCancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not stop after context cancellation")
	}
}

// TestMailboxZeroCapacityDefaultsToOne tests that a non-positive capacity
// falls back to 1.
func TestMailboxZeroCapacityDefaultsToOne(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := newMailbox(actorCtx, 0)
	defer mb.close()

	require.True(t, mb.send(context.Background(), newTestJob(1)))
}
