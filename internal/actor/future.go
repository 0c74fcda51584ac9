package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Future represents the result of an asynchronous ask operation. It allows
// consumers to block until the result is available, or to register a
// callback to be invoked when it is.
type Future[T any] interface {
	// Await blocks until the result is available or ctx is cancelled.
	Await(ctx context.Context) fn.Result[T]

	// OnComplete registers fn to be called once the result is ready. If
	// ctx is cancelled first, fn is invoked with the context's error.
	OnComplete(ctx context.Context, fn func(fn.Result[T]))
}

// Promise is the write side of a Future. The actor runtime completes a
// Promise exactly once per ask; callers observe the result via the
// associated Future.
type Promise[T any] interface {
	// Future returns the read side of this Promise.
	Future() Future[T]

	// Complete sets the result. It returns true if this call was the
	// first to complete the Promise, false if it had already completed.
	Complete(result fn.Result[T]) bool
}

// promiseImpl is the default channel-backed Promise/Future implementation.
type promiseImpl[T any] struct {
	done     chan struct{}
	once     sync.Once
	mu       sync.Mutex
	result   fn.Result[T]
	complete bool
}

// NewPromise creates a new, uncompleted Promise.
func NewPromise[T any]() Promise[T] {
	return &promiseImpl[T]{
		done: make(chan struct{}),
	}
}

// Complete implements Promise.
func (p *promiseImpl[T]) Complete(result fn.Result[T]) bool {
	ok := false
	p.once.Do(func() {
		p.mu.Lock()
		p.result = result
		p.complete = true
		p.mu.Unlock()

		close(p.done)
		ok = true
	})

	return ok
}

// Future implements Promise.
func (p *promiseImpl[T]) Future() Future[T] {
	return p
}

// Await implements Future.
func (p *promiseImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()

		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// OnComplete implements Future.
func (p *promiseImpl[T]) OnComplete(ctx context.Context, f func(fn.Result[T])) {
	go func() {
		result := p.Await(ctx)
		f(result)
	}()
}

// completedFuture wraps an already-known result in a Future, used for the
// synchronous failure paths (e.g. sending to a terminated actor).
func completedFuture[T any](result fn.Result[T]) Future[T] {
	p := NewPromise[T]()
	p.Complete(result)
	return p.Future()
}
