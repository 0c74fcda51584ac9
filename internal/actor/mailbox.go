package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// job is one unit of work enqueued in an actor's mailbox. run executes the
// work; when complete is non-nil, the job's result (or the error that kept
// it from running) must be published through it.
type job struct {
	run       func(ctx context.Context) (any, error)
	complete  func(ctx context.Context, val any, err error)
	callerCtx context.Context
}

// mailbox is the FIFO queue of pending jobs for a single actor, consumed by
// exactly one goroutine (spec.md §4.1 "mailbox"). It is backed by a
// channel, mirroring the teacher's ChannelMailbox design: a read lock is
// held for the duration of a send to make close-during-send race free
// without a send-on-closed-channel panic.
type mailbox struct {
	ch       chan job
	closed   atomic.Bool
	mu       sync.RWMutex
	closeCh  sync.Once
	actorCtx context.Context
}

// newMailbox creates a mailbox with the given buffer capacity, defaulting
// to 1 when capacity is non-positive.
func newMailbox(actorCtx context.Context, capacity int) *mailbox {
	if capacity <= 0 {
		capacity = 1
	}

	return &mailbox{
		ch:       make(chan job, capacity),
		actorCtx: actorCtx,
	}
}

// send enqueues j, blocking until accepted, ctx is cancelled, or the
// actor's own context is cancelled. Returns true iff accepted.
func (m *mailbox) send(ctx context.Context, j job) bool {
	if ctx.Err() != nil || m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- j:
		return true
	case <-ctx.Done():
		return false
	case <-m.actorCtx.Done():
		return false
	}
}

// receive returns an iterator over jobs as they arrive, stopping when ctx is
// cancelled or the mailbox is closed and fully drained.
func (m *mailbox) receive(ctx context.Context) iter.Seq[job] {
	return func(yield func(job) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case j, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(j) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// close closes the mailbox, preventing further sends. Idempotent.
func (m *mailbox) close() {
	m.closeCh.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.ch)
	})
}

// isClosed reports whether close has been called.
func (m *mailbox) isClosed() bool {
	return m.closed.Load()
}

// drain returns an iterator over jobs still queued after close. It yields
// nothing if the mailbox has not been closed.
func (m *mailbox) drain() iter.Seq[job] {
	return func(yield func(job) bool) {
		if !m.isClosed() {
			return
		}

		for {
			select {
			case j, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(j) {
					return
				}
			default:
				return
			}
		}
	}
}

// clearPending discards all jobs currently queued (not yet handed to the
// consumer), returning the number discarded. Any ask awaiting a discarded
// job's Future is completed with ErrActorTerminated, exactly as drain
// completes jobs still queued at close, rather than left to block until
// its own caller context expires. In-flight jobs are unaffected.
func (m *mailbox) clearPending() int {
	count := 0
	for {
		select {
		case j, ok := <-m.ch:
			if !ok {
				return count
			}
			count++
			if j.complete != nil {
				j.complete(context.Background(), nil, ErrActorTerminated)
			}
		default:
			return count
		}
	}
}
