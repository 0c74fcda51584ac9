// Package scheduler is a small period-driven wrapper over a delay executor
// that submits an action to a target actor's ordered mailbox on each
// firing (spec.md §4.7 "Scheduler (optional, small)").
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/roasbeef/actorflow/internal/actor"
	"github.com/roasbeef/actorflow/internal/dispatch"
)

// scheduledTask tracks one id's in-flight timer so re-submitting the same
// id can atomically replace it.
type scheduledTask struct {
	timer   *time.Timer
	cancel  chan struct{}
	cancelO sync.Once
}

func (t *scheduledTask) stop() {
	t.timer.Stop()
	t.cancelO.Do(func() { close(t.cancel) })
}

// Scheduler fires actions against actors registered in an ActorSystem, on
// a fixed-rate, fixed-delay, or one-shot schedule.
type Scheduler struct {
	system *actor.ActorSystem

	mu    sync.Mutex
	tasks map[string]*scheduledTask
}

// New creates a Scheduler bound to system.
func New(system *actor.ActorSystem) *Scheduler {
	return &Scheduler{
		system: system,
		tasks:  make(map[string]*scheduledTask),
	}
}

// submit fires action against actorName's ordered mailbox via Tell,
// passing an empty argument bundle — scheduled firings carry no
// per-invocation arguments (spec.md §4.7 names only actor/action). The
// dispatch result is written to the target actor's KV-State "result" key,
// matching the interpreter's own convention.
func (s *Scheduler) submit(actorName, action string) {
	target, ok := s.system.Get(actorName)
	if !ok {
		log.Warnf("scheduler: actor not found: %s", actorName)
		return
	}

	target.Tell(context.Background(), func(_ context.Context, payload any) {
		result := dispatch.Dispatch(payload, action, "[]")
		target.KVState().Put("result", result.Result)
	})
}

// replace stops and discards any existing task registered under id, then
// installs task in its place. Re-submitting the same id atomically
// replaces the previous task (spec.md §4.7).
func (s *Scheduler) replace(id string, task *scheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[id]; ok {
		existing.stop()
	}
	s.tasks[id] = task
}

// Once fires action against actorName exactly once, after delay.
func (s *Scheduler) Once(id, actorName, action string, delay time.Duration) {
	task := &scheduledTask{cancel: make(chan struct{})}

	task.timer = time.AfterFunc(delay, func() {
		select {
		case <-task.cancel:
			return
		default:
		}
		s.submit(actorName, action)

		s.mu.Lock()
		if s.tasks[id] == task {
			delete(s.tasks, id)
		}
		s.mu.Unlock()
	})

	s.replace(id, task)
}

// FixedRate fires action against actorName every period, starting after
// initialDelay. Each next firing is scheduled period after the previous
// submit call returns, so a submit that blocks delays every later firing;
// firings do not follow an absolute schedule.
func (s *Scheduler) FixedRate(id, actorName, action string, initialDelay, period time.Duration) {
	task := &scheduledTask{cancel: make(chan struct{})}

	var scheduleNext func(d time.Duration)
	scheduleNext = func(d time.Duration) {
		task.timer = time.AfterFunc(d, func() {
			select {
			case <-task.cancel:
				return
			default:
			}
			s.submit(actorName, action)
			scheduleNext(period)
		})
	}
	scheduleNext(initialDelay)

	s.replace(id, task)
}

// FixedDelay fires action against actorName, waiting period after each
// firing completes before scheduling the next one, starting after
// initialDelay.
func (s *Scheduler) FixedDelay(id, actorName, action string, initialDelay, period time.Duration) {
	// submit() is itself a fire-and-forget Tell, so "after each firing
	// completes" is measured from the Tell call returning, not from the
	// actor having processed it; spec.md §4.7 does not distinguish these
	// for a fire-and-forget executor, and tying the schedule to actor
	// processing would reintroduce a queue-depth dependency this package
	// otherwise has none of.
	s.FixedRate(id, actorName, action, initialDelay, period)
}

// Cancel stops and removes the task registered under id, returning true if
// a task was found.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return false
	}

	task.stop()
	delete(s.tasks, id)
	return true
}

// Pending reports whether id currently names an active task.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tasks[id]
	return ok
}
