package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roasbeef/actorflow/internal/pool"
)

// defaultGraceWindow bounds how long Terminate waits for every registered
// actor's mailbox consumer to exit before giving up (spec.md §4.2
// "terminate").
const defaultGraceWindow = 60 * time.Second

// SystemConfig holds configuration parameters for an ActorSystem.
type SystemConfig struct {
	// MailboxCapacity is the default mailbox buffer capacity handed to
	// actors created through ActorOf that don't specify their own.
	MailboxCapacity int

	// GraceWindow bounds Terminate's wait for actors to drain. Defaults to
	// 60s when zero.
	GraceWindow time.Duration

	// PoolGraceWindow bounds Terminate's wait for owned pools (added via
	// AddPool) to finish their in-flight work after Shutdown. Defaults to
	// pool.DefaultAwaitTimeout when zero (spec.md §4.2 "terminate ...
	// shuts pools down and awaits up to a bounded grace window").
	PoolGraceWindow time.Duration
}

// DefaultSystemConfig returns the default ActorSystem configuration.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		MailboxCapacity: 16,
		GraceWindow:     defaultGraceWindow,
		PoolGraceWindow: pool.DefaultAwaitTimeout,
	}
}

// ActorSystem is a keyed registry of actors plus the WorkerPool(s) it owns
// (spec.md §4.2 "ActorSystem ... owns one or more WorkerPools"). Unlike a
// supervision tree, ActorSystem tracks parent/child names only for
// bookkeeping; there is no strong reference from parent to child beyond the
// name recorded on Actor.Parent/Children.
type ActorSystem struct {
	config SystemConfig

	// instanceID uniquely identifies this ActorSystem instance, useful for
	// correlating log lines and run-history records across process
	// restarts when several systems might otherwise look alike.
	instanceID string

	mu     sync.RWMutex
	actors map[string]*Actor

	poolMu sync.RWMutex
	pools  []pool.Pool

	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewActorSystem creates an ActorSystem with the default configuration.
func NewActorSystem() *ActorSystem {
	return NewActorSystemWithConfig(DefaultSystemConfig())
}

// NewActorSystemWithConfig creates an ActorSystem with custom configuration.
func NewActorSystemWithConfig(cfg SystemConfig) *ActorSystem {
	if cfg.MailboxCapacity <= 0 {
		cfg.MailboxCapacity = 16
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = defaultGraceWindow
	}
	if cfg.PoolGraceWindow <= 0 {
		cfg.PoolGraceWindow = pool.DefaultAwaitTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ActorSystem{
		config:     cfg,
		instanceID: uuid.NewString(),
		actors:     make(map[string]*Actor),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AddPool registers p as owned by this system: Terminate shuts it down
// (bounded by SystemConfig.PoolGraceWindow) and IsAlive reflects its
// shutdown state (spec.md §4.2 "owns one or more WorkerPools").
func (as *ActorSystem) AddPool(p pool.Pool) {
	as.poolMu.Lock()
	as.pools = append(as.pools, p)
	as.poolMu.Unlock()
}

// Pools returns a snapshot of the WorkerPools this system owns.
func (as *ActorSystem) Pools() []pool.Pool {
	as.poolMu.RLock()
	defer as.poolMu.RUnlock()

	out := make([]pool.Pool, len(as.pools))
	copy(out, as.pools)
	return out
}

// InstanceID returns this ActorSystem's unique instance identifier.
func (as *ActorSystem) InstanceID() string { return as.instanceID }

// ActorOf creates, registers, and starts a new actor under cfg.Name. If an
// actor already exists under that name it is replaced; the old actor is
// closed first, last-writer-wins (SPEC_FULL.md §4 "duplicate actor names").
func (as *ActorSystem) ActorOf(cfg Config) (*Actor, error) {
	if cfg.Name == "" {
		return nil, ErrInvalidActorName
	}

	if as.ctx.Err() != nil {
		return nil, fmt.Errorf("system is shutting down: %w", ErrActorTerminated)
	}

	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = as.config.MailboxCapacity
	}
	cfg.System = as
	cfg.Wg = &as.wg

	a, err := New(cfg)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()
	if old, exists := as.actors[cfg.Name]; exists {
		as.mu.Unlock()
		old.Close()
		as.mu.Lock()
	}
	as.actors[cfg.Name] = a
	as.mu.Unlock()

	a.Start()

	log.Debugf("registered actor %s with system", cfg.Name)

	return a, nil
}

// AddActor registers an already-constructed actor (e.g. one built outside
// ActorOf for test purposes) under its own name, starting it if it has not
// been started yet. Last-writer-wins on name collision, mirroring ActorOf.
func (as *ActorSystem) AddActor(a *Actor) {
	as.mu.Lock()
	if old, exists := as.actors[a.Name()]; exists && old != a {
		as.mu.Unlock()
		old.Close()
		as.mu.Lock()
	}
	as.actors[a.Name()] = a
	as.mu.Unlock()

	a.Start()
}

// Get returns the actor registered under name, if any.
func (as *ActorSystem) Get(name string) (*Actor, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	a, ok := as.actors[name]
	return a, ok
}

// Has reports whether an actor is currently registered under name.
func (as *ActorSystem) Has(name string) bool {
	_, ok := as.Get(name)
	return ok
}

// ActorIsAlive reports whether an actor is registered under name and has
// not yet been closed. This is a per-actor convenience query, distinct from
// IsAlive's system-wide pool-based meaning (spec.md §4.2).
func (as *ActorSystem) ActorIsAlive(name string) bool {
	a, ok := as.Get(name)
	return ok && a.IsAlive()
}

// IsAlive reports whether every WorkerPool this system owns (via AddPool)
// is still accepting work: it returns false iff at least one owned pool has
// begun shutting down (spec.md §4.2 "is_alive() ... returns false iff any
// of the owned pools is in shutdown"). A system that owns no pools is
// always alive.
func (as *ActorSystem) IsAlive() bool {
	as.poolMu.RLock()
	defer as.poolMu.RUnlock()

	for _, p := range as.pools {
		if p.Closed() {
			return false
		}
	}

	return true
}

// List returns the names of every currently registered actor.
func (as *ActorSystem) List() []string {
	as.mu.RLock()
	defer as.mu.RUnlock()

	names := make([]string, 0, len(as.actors))
	for name := range as.actors {
		names = append(names, name)
	}
	return names
}

// remove deregisters name from the system, called by Actor.Close. It is a
// no-op if name is not registered (e.g. already removed).
func (as *ActorSystem) remove(name string) {
	as.mu.Lock()
	defer as.mu.Unlock()

	delete(as.actors, name)
}

// Remove stops and deregisters the actor under name, returning whether one
// was found.
func (as *ActorSystem) Remove(name string) bool {
	as.mu.RLock()
	a, ok := as.actors[name]
	as.mu.RUnlock()

	if !ok {
		return false
	}

	a.Close()

	// Close only deregisters an actor that carries a back-reference to
	// this system; one registered through AddActor may not.
	as.mu.Lock()
	if cur, ok := as.actors[name]; ok && cur == a {
		delete(as.actors, name)
	}
	as.mu.Unlock()

	return true
}

// Terminate closes every registered actor, waits up to the system's grace
// window for their mailbox consumers to exit, then shuts down every owned
// pool and waits up to PoolGraceWindow for their workers to drain. Elapsing
// without full termination is logged, not returned as an error (spec.md
// §4.2 "terminate"): the caller's process is expected to exit regardless.
func (as *ActorSystem) Terminate(ctx context.Context) error {
	as.cancel()

	as.mu.Lock()
	toClose := make([]*Actor, 0, len(as.actors))
	for _, a := range as.actors {
		toClose = append(toClose, a)
	}
	as.actors = make(map[string]*Actor)
	as.mu.Unlock()

	log.Infof("actor system terminating, %d actors registered", len(toClose))

	for _, a := range toClose {
		a.Close()
	}

	graceCtx, cancel := context.WithTimeout(ctx, as.config.GraceWindow)
	defer cancel()

	done := make(chan struct{})
	go func() {
		as.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Infof("actor system terminated cleanly")

	case <-graceCtx.Done():
		log.Warnf("actor system termination grace window elapsed " +
			"with actors still running")
	}

	as.terminatePools(ctx)

	return nil
}

// terminatePools shuts down every pool this system owns and waits up to
// PoolGraceWindow for their workers to drain, logging (not failing) a
// grace-window overrun exactly like the actor-drain wait above.
func (as *ActorSystem) terminatePools(ctx context.Context) {
	pools := as.Pools()
	if len(pools) == 0 {
		return
	}

	for _, p := range pools {
		p.Shutdown()
	}

	poolCtx, cancel := context.WithTimeout(ctx, as.config.PoolGraceWindow)
	defer cancel()

	for _, p := range pools {
		if err := p.AwaitTermination(poolCtx); err != nil {
			log.Warnf("pool termination did not complete within "+
				"grace window: %v", err)
		}
	}
}
