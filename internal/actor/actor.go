package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/actorflow/internal/pool"
)

// TaskPool is the minimal surface an Actor needs from a worker pool in order
// to run bypass-path work on it (spec.md §4.1 "tell(f, pool)"/"ask(f,
// pool)"). internal/pool's Pool interface satisfies this structurally.
type TaskPool interface {
	Execute(task func())

	// Closed reports whether the pool has begun shutting down, letting
	// the bypass-path helpers fail fast with pool.ErrShutdown instead of
	// silently dropping the submission (spec.md §7 "Pool shutdown").
	Closed() bool
}

// consumerState tracks the lifecycle of an actor's mailbox consumer
// goroutine (spec.md §4.1 "State machine").
type consumerState int32

const (
	stateRunning consumerState = iota
	stateStopping
	stateStopped
)

// mergeContexts returns a context that is cancelled when either ctx1 or
// ctx2 is cancelled, preserving the earliest deadline of the two. This lets
// an ask's behavior observe both actor shutdown and the caller's deadline.
func mergeContexts(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	deadline1, hasDeadline1 := ctx1.Deadline()
	deadline2, hasDeadline2 := ctx2.Deadline()

	base := ctx1
	if hasDeadline2 && (!hasDeadline1 || deadline2.Before(deadline1)) {
		base = ctx2
	}

	merged, cancel := context.WithCancel(base)

	go func() {
		select {
		case <-ctx1.Done():
			cancel()
		case <-ctx2.Done():
			cancel()
		case <-merged.Done():
		}
	}()

	return merged, cancel
}

// Actor wraps a caller-chosen payload and serializes every ordered-path
// access to it through a private FIFO mailbox consumed by a single
// goroutine (spec.md §3 "Actor").
type Actor struct {
	name string

	// payload carries no lock of its own: ordered-path access is
	// serialized by the mailbox, and the bypass-path helpers (TellNow,
	// AskNow, TellOnPool, AskOnPool, AskOnOwnerPool, InvokeDirect) leave
	// payload race safety to the caller.
	payload any

	mailbox *mailbox

	ctx    context.Context
	cancel context.CancelFunc

	system *ActorSystem

	parent string

	childMu  sync.Mutex
	children []string

	kvOnce  sync.Once
	kvState *KVState

	wg *sync.WaitGroup

	state       atomic.Int32
	startOnce   sync.Once
	stopOnce    sync.Once
	cleanupTO   time.Duration
	stopCleanup func(ctx context.Context) error
}

// Config holds the parameters for creating a new Actor (spec.md §4.1).
type Config struct {
	// Name is the actor's unique identifier within its ActorSystem.
	Name string

	// Payload is the caller-chosen mutable object this actor protects.
	Payload any

	// MailboxSize is the mailbox's buffer capacity. Defaults to 1.
	MailboxSize int

	// Parent is the optional name of the actor that created this one.
	Parent string

	// System is a back-reference to the owning ActorSystem, used by
	// CreateChild. May be nil for a standalone actor.
	System *ActorSystem

	// Wg, if non-nil, is incremented on Start and decremented when the
	// mailbox consumer exits, enabling deterministic shutdown.
	Wg *sync.WaitGroup

	// CleanupTimeout bounds an OnStop-style hook, if OnStop is set.
	CleanupTimeout time.Duration

	// OnStop, if non-nil, is invoked once after the mailbox has drained
	// during Close, with a context bounded by CleanupTimeout.
	OnStop func(ctx context.Context) error
}

// New creates an Actor from cfg. The mailbox consumer is not started until
// Start is called.
func New(cfg Config) (*Actor, error) {
	if cfg.Name == "" {
		return nil, ErrInvalidActorName
	}

	ctx, cancel := context.WithCancel(context.Background())

	cleanupTO := cfg.CleanupTimeout
	if cleanupTO <= 0 {
		cleanupTO = 5 * time.Second
	}

	a := &Actor{
		name:        cfg.Name,
		payload:     cfg.Payload,
		mailbox:     newMailbox(ctx, cfg.MailboxSize),
		ctx:         ctx,
		cancel:      cancel,
		system:      cfg.System,
		parent:      cfg.Parent,
		wg:          cfg.Wg,
		cleanupTO:   cleanupTO,
		stopCleanup: cfg.OnStop,
	}
	a.state.Store(int32(stateRunning))

	return a, nil
}

// Name returns the actor's unique identifier.
func (a *Actor) Name() string { return a.name }

// Start launches the mailbox consumer goroutine. Safe to call more than
// once; only the first call has effect.
func (a *Actor) Start() {
	a.startOnce.Do(func() {
		if a.wg != nil {
			a.wg.Add(1)
		}

		log.Debugf("starting actor %s", a.name)

		go a.process()
	})
}

// process is the mailbox consumer loop (spec.md §4.1 "State machine").
func (a *Actor) process() {
	if a.wg != nil {
		defer a.wg.Done()
	}

	for j := range a.mailbox.receive(a.ctx) {
		a.runJob(j)
	}

	a.mailbox.close()

	drained := 0
	for j := range a.mailbox.drain() {
		drained++
		if j.complete != nil {
			j.complete(context.Background(), nil, ErrActorTerminated)
		}
	}

	a.state.Store(int32(stateStopped))

	if a.stopCleanup != nil {
		cleanupCtx, cancel := context.WithTimeout(
			context.Background(), a.cleanupTO,
		)
		if err := a.stopCleanup(cleanupCtx); err != nil {
			log.Warnf("actor %s cleanup error: %v", a.name, err)
		}
		cancel()
	}

	a.payload = nil

	log.Debugf("actor %s terminated, drained %d pending messages",
		a.name, drained)
}

// runJob executes one mailbox job, merging the actor's lifecycle context
// with the caller's context for ask operations only; tell operations keep
// fire-and-forget semantics once enqueued.
func (a *Actor) runJob(j job) {
	var (
		ctx    context.Context
		cancel context.CancelFunc = func() {}
	)

	if j.complete != nil {
		ctx, cancel = mergeContexts(a.ctx, j.callerCtx)
	} else {
		ctx = a.ctx
	}

	val, err := j.run(ctx)
	cancel()

	if j.complete != nil {
		j.complete(ctx, val, err)
	}
}

// Close stops the mailbox consumer, drains and discards any remaining
// queued messages, clears the payload, and deregisters the actor from its
// system. Idempotent.
func (a *Actor) Close() {
	a.stopOnce.Do(func() {
		a.state.Store(int32(stateStopping))
		a.cancel()

		if a.system != nil {
			a.system.remove(a.name)
		}
	})
}

// IsAlive reports whether the actor has not yet been closed.
func (a *Actor) IsAlive() bool {
	return consumerState(a.state.Load()) == stateRunning
}

// ClearPending discards all queued-but-not-started mailbox messages,
// returning the number discarded. A message already handed to the consumer
// completes normally.
func (a *Actor) ClearPending() int {
	return a.mailbox.clearPending()
}

// KVState returns this actor's dynamic key-value scratch state, creating it
// on first access (spec.md §4.1 "kv_state()").
func (a *Actor) KVState() *KVState {
	a.kvOnce.Do(func() {
		a.kvState = NewKVState()
	})
	return a.kvState
}

// Parent returns the name of the actor that created this one, or "" if it
// has none.
func (a *Actor) Parent() string { return a.parent }

// Children returns a snapshot of this actor's child names in insertion
// order.
func (a *Actor) Children() []string {
	a.childMu.Lock()
	defer a.childMu.Unlock()

	out := make([]string, len(a.children))
	copy(out, a.children)
	return out
}

// CreateChild registers a new actor under name with the given payload,
// recording this actor as its parent. The child is started immediately.
// Requires that this actor belongs to an ActorSystem.
func (a *Actor) CreateChild(name string, payload any) (*Actor, error) {
	if a.system == nil {
		return nil, fmt.Errorf("actor %s has no owning system", a.name)
	}

	child, err := a.system.ActorOf(Config{
		Name:    name,
		Payload: payload,
		Parent:  a.name,
	})
	if err != nil {
		return nil, err
	}

	a.childMu.Lock()
	a.children = append(a.children, name)
	a.childMu.Unlock()

	return child, nil
}

// Tell enqueues f to run against the payload on the mailbox, fire-and-forget
// style, preserving FIFO order relative to other tell/ask calls from the
// same caller. The returned Future completes (with no value) once f has
// run, or fails if the actor terminates before running it.
func (a *Actor) Tell(ctx context.Context, f func(ctx context.Context, payload any)) Future[struct{}] {
	promise := NewPromise[struct{}]()

	j := job{
		run: func(ctx context.Context) (any, error) {
			f(ctx, a.payload)
			return struct{}{}, nil
		},
		complete: func(_ context.Context, _ any, err error) {
			if err != nil {
				promise.Complete(fn.Err[struct{}](err))
				return
			}
			promise.Complete(fn.Ok(struct{}{}))
		},
		callerCtx: ctx,
	}

	if !a.mailbox.send(ctx, j) {
		return rejectedFuture[struct{}](a, ctx)
	}

	return promise.Future()
}

// Ask enqueues f to run against the payload and returns a Future for its
// result, preserving the same ordering guarantees as Tell.
func Ask[R any](ctx context.Context, a *Actor,
	f func(ctx context.Context, payload any) (R, error),
) Future[R] {
	promise := NewPromise[R]()

	j := job{
		run: func(ctx context.Context) (any, error) {
			return f(ctx, a.payload)
		},
		complete: func(_ context.Context, val any, err error) {
			if err != nil {
				var zero R
				promise.Complete(fn.Err[R](err))
				_ = zero
				return
			}

			res, _ := val.(R)
			promise.Complete(fn.Ok(res))
		},
		callerCtx: ctx,
	}

	if a.ctx.Err() != nil {
		promise.Complete(fn.Err[R](ErrActorTerminated))
		return promise.Future()
	}

	if !a.mailbox.send(ctx, j) {
		if a.ctx.Err() != nil {
			promise.Complete(fn.Err[R](ErrActorTerminated))
		} else {
			err := ctx.Err()
			if err == nil {
				err = ErrActorTerminated
			}
			promise.Complete(fn.Err[R](err))
		}
	}

	return promise.Future()
}

// rejectedFuture returns an already-completed Future appropriate for a
// failed mailbox.send call, distinguishing actor termination from caller
// cancellation. This is a package-level generic function because methods
// cannot carry their own type parameters in Go.
func rejectedFuture[T any](a *Actor, ctx context.Context) Future[T] {
	if a.ctx.Err() != nil {
		return completedFuture(fn.Err[T](ErrActorTerminated))
	}

	err := ctx.Err()
	if err == nil {
		err = ErrActorTerminated
	}

	return completedFuture(fn.Err[T](err))
}

// TellNow runs f against the payload on a freshly spawned goroutine,
// bypassing the mailbox entirely. It has no ordering relationship to queued
// messages; the caller is responsible for payload race safety (spec.md
// §4.1 "tell_now").
func (a *Actor) TellNow(ctx context.Context, f func(ctx context.Context, payload any)) Future[struct{}] {
	promise := NewPromise[struct{}]()

	go func() {
		f(ctx, a.payload)
		promise.Complete(fn.Ok(struct{}{}))
	}()

	return promise.Future()
}

// AskNow runs f against the payload on a freshly spawned goroutine,
// bypassing the mailbox (spec.md §4.1 "ask_now").
func AskNow[R any](ctx context.Context, a *Actor,
	f func(ctx context.Context, payload any) (R, error),
) Future[R] {
	promise := NewPromise[R]()

	go func() {
		res, err := f(ctx, a.payload)
		if err != nil {
			promise.Complete(fn.Err[R](err))
			return
		}
		promise.Complete(fn.Ok(res))
	}()

	return promise.Future()
}

// TellOnPool submits f to run against the payload on p, bypassing the
// mailbox. The actor's mailbox is not involved and the caller is
// responsible for payload race safety (spec.md §4.1 "tell(f, pool)"). If p
// has already been shut down, the returned Future fails with
// pool.ErrShutdown instead of the submission being silently lost (spec.md
// §7 "Pool shutdown").
func (a *Actor) TellOnPool(ctx context.Context, p TaskPool, f func(ctx context.Context, payload any)) Future[struct{}] {
	if p.Closed() {
		return completedFuture(fn.Err[struct{}](pool.ErrShutdown))
	}

	promise := NewPromise[struct{}]()

	p.Execute(func() {
		f(ctx, a.payload)
		promise.Complete(fn.Ok(struct{}{}))
	})

	return promise.Future()
}

// AskOnPool submits f to run against the payload on p, bypassing the
// mailbox (spec.md §4.1 "ask(f, pool)"). If p has already been shut down,
// the returned Future fails with pool.ErrShutdown (spec.md §7 "Pool
// shutdown").
func AskOnPool[R any](ctx context.Context, a *Actor, p TaskPool,
	f func(ctx context.Context, payload any) (R, error),
) Future[R] {
	if p.Closed() {
		return completedFuture(fn.Err[R](pool.ErrShutdown))
	}

	promise := NewPromise[R]()

	p.Execute(func() {
		res, err := f(ctx, a.payload)
		if err != nil {
			promise.Complete(fn.Err[R](err))
			return
		}
		promise.Complete(fn.Ok(res))
	})

	return promise.Future()
}

// OwnerTaskPool is the subset of pool.OwnerPool that an owner-keyed bypass
// dispatch needs (spec.md §4.6 step 2d: "POOL submits ... via the actor's
// managed pool-submit ... with the actor's name as owner key").
type OwnerTaskPool interface {
	SubmitForOwner(ownerID string, task func())
	Closed() bool
}

// AskOnOwnerPool submits f to run against the payload on pool under the
// given owner key, bypassing the mailbox. The pool's CancelForOwner can
// then remove every dispatch still queued for that owner; a removed
// dispatch never runs and its Future is never completed. If
// p has already been shut down, the returned Future fails with
// pool.ErrShutdown (spec.md §7 "Pool shutdown").
func AskOnOwnerPool[R any](ctx context.Context, a *Actor, p OwnerTaskPool, owner string,
	f func(ctx context.Context, payload any) (R, error),
) Future[R] {
	if p.Closed() {
		return completedFuture(fn.Err[R](pool.ErrShutdown))
	}

	promise := NewPromise[R]()

	p.SubmitForOwner(owner, func() {
		res, err := f(ctx, a.payload)
		if err != nil {
			promise.Complete(fn.Err[R](err))
			return
		}
		promise.Complete(fn.Ok(res))
	})

	return promise.Future()
}

// InvokeDirect runs f against a's payload synchronously on the caller's own
// goroutine, bypassing both the mailbox and any pool (spec.md §4.6 step 2d:
// "DIRECT invokes synchronously on the caller"). The caller is responsible
// for payload race safety, exactly as with the other bypass-path helpers.
func InvokeDirect[R any](a *Actor, f func(payload any) (R, error)) (R, error) {
	return f(a.payload)
}
