package pool

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
)

// localDeque is a single worker's LIFO task deque, also steal-able from the
// opposite end by idle peers. Push/pop happen from the owning worker;
// steal happens from any other worker.
type localDeque struct {
	mu    sync.Mutex
	tasks []func()
}

func (d *localDeque) pushBack(task func()) {
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
}

// popBack removes and returns the most recently pushed task, owned-worker
// side of the deque.
func (d *localDeque) popBack() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.tasks)
	if n == 0 {
		return nil, false
	}

	task := d.tasks[n-1]
	d.tasks[n-1] = nil
	d.tasks = d.tasks[:n-1]
	return task, true
}

// stealFront removes and returns the oldest queued task, the steal side of
// the deque, reducing contention with the owner's popBack.
func (d *localDeque) stealFront() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.tasks) == 0 {
		return nil, false
	}

	task := d.tasks[0]
	d.tasks = d.tasks[1:]
	return task, true
}

func (d *localDeque) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// StealingPool is an unordered parallel executor with no per-owner
// bookkeeping (spec.md §4.3, "variant A"). Each worker owns a local deque;
// an idle worker steals from a randomly chosen peer before blocking. Tasks
// submitted via Execute are spread round-robin across the workers' local
// deques.
type StealingPool struct {
	workers []*localDeque
	next    atomic.Uint64

	wakeup chan struct{}

	closed   atomic.Bool
	closeCh  chan struct{}
	workerWg sync.WaitGroup
}

// Ensure StealingPool implements Pool. It also has no-op CancelForOwner/
// PendingForOwner methods, but it does not implement OwnerPool.
var _ Pool = (*StealingPool)(nil)

// StealingConfig configures a StealingPool.
type StealingConfig struct {
	// NumWorkers is the number of worker goroutines. Defaults to 1 when
	// non-positive.
	NumWorkers int
}

// NewStealingPool creates and starts a StealingPool.
func NewStealingPool(cfg StealingConfig) *StealingPool {
	n := cfg.NumWorkers
	if n <= 0 {
		n = 1
	}

	p := &StealingPool{
		workers: make([]*localDeque, n),
		wakeup:  make(chan struct{}, n),
		closeCh: make(chan struct{}),
	}

	for i := range p.workers {
		p.workers[i] = &localDeque{}
	}

	p.workerWg.Add(n)
	for i := 0; i < n; i++ {
		go p.runWorker(i)
	}

	return p
}

// Execute implements Pool, assigning task round-robin to a worker's local
// deque and waking an idle worker if one is sleeping.
func (p *StealingPool) Execute(task func()) {
	if p.closed.Load() {
		return
	}

	idx := int(p.next.Add(1)-1) % len(p.workers)
	p.workers[idx].pushBack(task)

	select {
	case p.wakeup <- struct{}{}:
	default:
	}
}

func (p *StealingPool) runWorker(idx int) {
	defer p.workerWg.Done()

	own := p.workers[idx]

	for {
		if task, ok := own.popBack(); ok {
			task()
			continue
		}

		if task, ok := p.tryStealFor(idx); ok {
			task()
			continue
		}

		select {
		case <-p.wakeup:
		case <-p.closeCh:
			// Drain whatever is left in our own deque before
			// exiting; peers may still be mid-steal from us.
			for {
				task, ok := own.popBack()
				if !ok {
					return
				}
				task()
			}
		}
	}
}

// tryStealFor attempts to steal one task from a randomly ordered scan of
// every peer deque other than idx.
func (p *StealingPool) tryStealFor(idx int) (func(), bool) {
	n := len(p.workers)
	if n <= 1 {
		return nil, false
	}

	start := rand.Intn(n)
	for i := 0; i < n; i++ {
		victim := (start + i) % n
		if victim == idx {
			continue
		}
		if task, ok := p.workers[victim].stealFront(); ok {
			return task, ok
		}
	}

	return nil, false
}

// Shutdown implements Pool. Idempotent.
func (p *StealingPool) Shutdown() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.closeCh)
	}
}

// AwaitTermination implements Pool.
func (p *StealingPool) AwaitTermination(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.workerWg.Wait()
		close(done)
	}()

	return awaitWorkers(ctx, done)
}

// SupportsCancellation implements Pool; the stealing variant never tracks
// ownership.
func (p *StealingPool) SupportsCancellation() bool { return false }

// Closed implements Pool.
func (p *StealingPool) Closed() bool { return p.closed.Load() }

// CancelForOwner is a no-op for the stealing variant, always returning 0
// (spec.md §4.3 invariant: "the stealing variant's cancel_for_owner is a
// no-op returning 0").
func (p *StealingPool) CancelForOwner(string) int { return 0 }

// PendingForOwner always returns 0; the stealing variant does not track
// ownership.
func (p *StealingPool) PendingForOwner(string) int { return 0 }
