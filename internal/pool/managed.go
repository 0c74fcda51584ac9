package pool

import (
	"container/list"
	"context"
	"sync"
)

// managedJob is one entry in a ManagedPool's shared deque.
type managedJob struct {
	owner string
	fn    func()
}

// ManagedPool is the owner-tracked worker pool variant (spec.md §4.3,
// "variant B"). Jobs are drawn from a single shared deque by a fixed
// number of workers. Jobs submitted through SubmitForOwner/
// SubmitUrgentForOwner are additionally recorded in a per-owner set so that
// CancelForOwner can remove every not-yet-started job for that owner in one
// call.
//
// A job is considered "started" - and therefore untouchable by
// CancelForOwner - the moment a worker dequeues it, not when it finishes
// running; this is a documented simplification of the "on completion"
// wording, chosen so PendingForOwner reflects queue depth rather than
// in-flight work.
type ManagedPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    *list.List // of *list.Element wrapping *managedJob
	owners   map[string]map[*list.Element]struct{}
	shutdown bool

	workerWg sync.WaitGroup
}

// Ensure ManagedPool implements OwnerPool.
var _ OwnerPool = (*ManagedPool)(nil)

// ManagedConfig configures a ManagedPool.
type ManagedConfig struct {
	// NumWorkers is the number of worker goroutines. Defaults to 1 when
	// non-positive.
	NumWorkers int
}

// NewManagedPool creates and starts a ManagedPool.
func NewManagedPool(cfg ManagedConfig) *ManagedPool {
	n := cfg.NumWorkers
	if n <= 0 {
		n = 1
	}

	p := &ManagedPool{
		queue:  list.New(),
		owners: make(map[string]map[*list.Element]struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.workerWg.Add(n)
	for i := 0; i < n; i++ {
		go p.runWorker()
	}

	return p
}

// Execute implements Pool: an unowned task, enqueued at the back.
func (p *ManagedPool) Execute(task func()) {
	p.enqueue(&managedJob{fn: task}, false)
}

// SubmitForOwner implements OwnerPool, enqueuing at the back and tracking
// the job under ownerID until a worker dequeues it.
func (p *ManagedPool) SubmitForOwner(ownerID string, task func()) {
	p.enqueue(&managedJob{owner: ownerID, fn: task}, false)
}

// SubmitUrgentForOwner implements OwnerPool, enqueuing at the front.
func (p *ManagedPool) SubmitUrgentForOwner(ownerID string, task func()) {
	p.enqueue(&managedJob{owner: ownerID, fn: task}, true)
}

func (p *ManagedPool) enqueue(j *managedJob, urgent bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return
	}

	var elem *list.Element
	if urgent {
		elem = p.queue.PushFront(j)
	} else {
		elem = p.queue.PushBack(j)
	}

	if j.owner != "" {
		set, ok := p.owners[j.owner]
		if !ok {
			set = make(map[*list.Element]struct{})
			p.owners[j.owner] = set
		}
		set[elem] = struct{}{}
	}

	p.cond.Signal()
}

// CancelForOwner implements OwnerPool.
func (p *ManagedPool) CancelForOwner(ownerID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.owners[ownerID]
	if !ok || len(set) == 0 {
		return 0
	}

	removed := 0
	for elem := range set {
		p.queue.Remove(elem)
		removed++
	}

	delete(p.owners, ownerID)

	return removed
}

// PendingForOwner implements OwnerPool.
func (p *ManagedPool) PendingForOwner(ownerID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.owners[ownerID])
}

func (p *ManagedPool) runWorker() {
	defer p.workerWg.Done()

	for {
		j, ok := p.dequeue()
		if !ok {
			return
		}
		j.fn()
	}
}

// dequeue blocks until a job is available or the pool is shut down with an
// empty queue, in which case it returns ok=false.
func (p *ManagedPool) dequeue() (*managedJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.queue.Len() == 0 {
		if p.shutdown {
			return nil, false
		}
		p.cond.Wait()
	}

	elem := p.queue.Front()
	p.queue.Remove(elem)

	j := elem.Value.(*managedJob)
	if j.owner != "" {
		if set, ok := p.owners[j.owner]; ok {
			delete(set, elem)
			if len(set) == 0 {
				delete(p.owners, j.owner)
			}
		}
	}

	return j, true
}

// Shutdown implements Pool. Idempotent; wakes every blocked worker so they
// can observe shutdown and exit once the queue drains.
func (p *ManagedPool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	p.mu.Unlock()

	p.cond.Broadcast()
}

// AwaitTermination implements Pool.
func (p *ManagedPool) AwaitTermination(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.workerWg.Wait()
		close(done)
	}()

	return awaitWorkers(ctx, done)
}

// SupportsCancellation implements Pool; true for the managed variant.
func (p *ManagedPool) SupportsCancellation() bool { return true }

// Closed implements Pool.
func (p *ManagedPool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.shutdown
}
