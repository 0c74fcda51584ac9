// Package pool implements the two worker-pool variants used to run
// bypass-path actor work and workflow actions in POOL execution mode: a
// work-stealing pool with no ownership tracking, and a managed pool that
// additionally tracks queued-but-not-started jobs per owner so that a
// caller can bulk-cancel them (spec.md §4.3).
package pool

import (
	"context"
	"errors"
	"time"
)

// ErrShutdown is the failed-future error a caller observes when submitting
// work to a pool that has already begun shutting down (spec.md §7 "Pool
// shutdown"). internal/actor's bypass-path helpers (TellOnPool/AskOnPool/
// AskOnOwnerPool) return it instead of silently losing the submission.
var ErrShutdown = errors.New("pool is shut down")

// Pool is the common surface both worker-pool variants expose. It is the
// interface internal/actor.TaskPool duck-types against for the bypass-path
// tell(f, pool)/ask(f, pool) operations.
type Pool interface {
	// Execute submits task for unordered execution with no owner
	// tracking. Safe to call concurrently.
	Execute(task func())

	// Shutdown stops accepting new tasks. Already-queued and in-flight
	// tasks continue to run. Idempotent.
	Shutdown()

	// AwaitTermination blocks until every worker has exited or ctx is
	// done, whichever comes first.
	AwaitTermination(ctx context.Context) error

	// SupportsCancellation reports whether this pool implements owner
	// tracking and cancel_for_owner. False for the stealing variant,
	// true for the managed variant.
	SupportsCancellation() bool

	// Closed reports whether Shutdown has been called. ActorSystem uses
	// this to implement is_alive() (spec.md §4.2); the bypass-path
	// helpers use it to fail fast with ErrShutdown instead of silently
	// dropping a submission.
	Closed() bool
}

// OwnerPool extends Pool with the managed variant's owner-scoped
// operations (spec.md §4.3).
type OwnerPool interface {
	Pool

	// SubmitForOwner enqueues task at the back of the shared queue,
	// associated with ownerID so it can later be bulk-cancelled.
	SubmitForOwner(ownerID string, task func())

	// SubmitUrgentForOwner enqueues task at the front of the shared
	// queue, associated with ownerID.
	SubmitUrgentForOwner(ownerID string, task func())

	// CancelForOwner removes every not-yet-started task still queued
	// for ownerID, returning the number removed.
	CancelForOwner(ownerID string) int

	// PendingForOwner returns the number of ownerID's tasks still
	// queued (not yet handed to a worker).
	PendingForOwner(ownerID string) int
}

// awaitWorkers blocks on done until it closes or ctx is cancelled,
// whichever happens first. Shared by both pool variants'
// AwaitTermination.
func awaitWorkers(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DefaultAwaitTimeout bounds how long a caller waits for a pool's workers to
// drain when it doesn't have a more specific grace window of its own.
// ActorSystem uses this as the default for SystemConfig.PoolGraceWindow
// (spec.md §4.2 "terminate ... awaits up to a bounded window").
const DefaultAwaitTimeout = 30 * time.Second
