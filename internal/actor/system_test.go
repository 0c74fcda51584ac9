package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/actorflow/internal/pool"
)

// TestNewActorSystemAssignsUniqueInstanceID tests that each ActorSystem
// gets its own non-empty instance identifier.
func TestNewActorSystemAssignsUniqueInstanceID(t *testing.T) {
	t.Parallel()

	a := NewActorSystem()
	defer a.Terminate(context.Background())
	b := NewActorSystem()
	defer b.Terminate(context.Background())

	require.NotEmpty(t, a.InstanceID())
	require.NotEmpty(t, b.InstanceID())
	require.NotEqual(t, a.InstanceID(), b.InstanceID())
}

// TestActorOfRegistersAndStarts tests that ActorOf both registers the actor
// under its name and starts its mailbox consumer.
func TestActorOfRegistersAndStarts(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	a, err := sys.ActorOf(Config{Name: "worker-1"})
	require.NoError(t, err)
	require.True(t, sys.Has("worker-1"))

	got, ok := sys.Get("worker-1")
	require.True(t, ok)
	require.Same(t, a, got)
}

// TestActorOfDuplicateNameIsLastWriterWins tests that registering a second
// actor under an existing name closes the old one and replaces it.
func TestActorOfDuplicateNameIsLastWriterWins(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	first, err := sys.ActorOf(Config{Name: "dup"})
	require.NoError(t, err)

	second, err := sys.ActorOf(Config{Name: "dup"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !first.IsAlive()
	}, time.Second, 10*time.Millisecond)

	got, ok := sys.Get("dup")
	require.True(t, ok)
	require.Same(t, second, got)
}

// TestActorOfRejectsEmptyName tests that ActorOf refuses an empty name.
func TestActorOfRejectsEmptyName(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	_, err := sys.ActorOf(Config{Name: ""})
	require.ErrorIs(t, err, ErrInvalidActorName)
}

// TestRemoveStopsAndDeregisters tests that Remove closes the actor and
// removes it from the registry.
func TestRemoveStopsAndDeregisters(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	_, err := sys.ActorOf(Config{Name: "removable"})
	require.NoError(t, err)

	ok := sys.Remove("removable")
	require.True(t, ok)
	require.False(t, sys.Has("removable"))

	ok = sys.Remove("removable")
	require.False(t, ok, "removing a second time should report not found")
}

// TestActorCloseSelfDeregisters tests that closing an actor directly (not
// via ActorSystem.Remove) still removes it from its owning system.
func TestActorCloseSelfDeregisters(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	a, err := sys.ActorOf(Config{Name: "self-closer"})
	require.NoError(t, err)

	a.Close()

	require.Eventually(t, func() bool {
		return !sys.Has("self-closer")
	}, time.Second, 10*time.Millisecond)
}

// TestListReturnsAllRegisteredNames tests that List reflects every
// currently registered actor.
func TestListReturnsAllRegisteredNames(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	for _, name := range []string{"a", "b", "c"} {
		_, err := sys.ActorOf(Config{Name: name})
		require.NoError(t, err)
	}

	require.ElementsMatch(t, []string{"a", "b", "c"}, sys.List())
}

// TestTerminateClosesAllActors tests that Terminate closes every registered
// actor and returns once they have all drained within the grace window.
func TestTerminateClosesAllActors(t *testing.T) {
	t.Parallel()

	sys := NewActorSystemWithConfig(SystemConfig{
		MailboxCapacity: 4,
		GraceWindow:     2 * time.Second,
	})

	for _, name := range []string{"x", "y", "z"} {
		_, err := sys.ActorOf(Config{Name: name})
		require.NoError(t, err)
	}

	err := sys.Terminate(context.Background())
	require.NoError(t, err)
	require.Empty(t, sys.List())
}

// TestActorOfAfterTerminateFails tests that registering a new actor after
// Terminate has begun fails rather than leaking a goroutine.
func TestActorOfAfterTerminateFails(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()

	err := sys.Terminate(context.Background())
	require.NoError(t, err)

	_, err = sys.ActorOf(Config{Name: "too-late"})
	require.Error(t, err)
}

// TestActorIsAliveReflectsActorState tests that ActorIsAlive tracks an
// actor through registration and closure.
func TestActorIsAliveReflectsActorState(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	_, err := sys.ActorOf(Config{Name: "alive-check"})
	require.NoError(t, err)
	require.True(t, sys.ActorIsAlive("alive-check"))

	sys.Remove("alive-check")
	require.False(t, sys.ActorIsAlive("alive-check"))

	require.False(t, sys.ActorIsAlive("never-existed"))
}

// TestSystemIsAliveWithNoPoolsIsAlwaysTrue tests that a system owning no
// pools reports itself alive.
func TestSystemIsAliveWithNoPoolsIsAlwaysTrue(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	require.True(t, sys.IsAlive())
}

// TestSystemIsAliveFalseIfAnyOwnedPoolShutDown tests that IsAlive reports
// false as soon as any one of several owned pools has begun shutting down
// (spec.md §4.2 "returns false iff any of the owned pools is in shutdown").
func TestSystemIsAliveFalseIfAnyOwnedPoolShutDown(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	t.Cleanup(func() { _ = sys.Terminate(context.Background()) })

	p1 := pool.NewStealingPool(pool.StealingConfig{NumWorkers: 1})
	p2 := pool.NewManagedPool(pool.ManagedConfig{NumWorkers: 1})
	sys.AddPool(p1)
	sys.AddPool(p2)

	require.True(t, sys.IsAlive())

	p2.Shutdown()
	require.False(t, sys.IsAlive())
}

// TestTerminateShutsDownOwnedPools tests that Terminate shuts down every
// pool registered via AddPool and awaits their workers draining.
func TestTerminateShutsDownOwnedPools(t *testing.T) {
	t.Parallel()

	sys := NewActorSystemWithConfig(SystemConfig{
		MailboxCapacity: 4,
		GraceWindow:     time.Second,
		PoolGraceWindow: time.Second,
	})

	p := pool.NewManagedPool(pool.ManagedConfig{NumWorkers: 2})
	sys.AddPool(p)

	err := sys.Terminate(context.Background())
	require.NoError(t, err)

	require.True(t, p.Closed())

	awaitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.AwaitTermination(awaitCtx))
}
