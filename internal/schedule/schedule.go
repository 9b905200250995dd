// Package schedule provides cancellable delayed callbacks that can be scoped
// to the lifetime of an owner and driven by a manual clock in tests.
package schedule

import (
	"sync"
	"time"
)

// Task is a handle to a scheduled callback.
type Task interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the task before it ran.
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// System schedules on the runtime timer.
type System struct{}

func (System) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

type stoppedTask struct{}

func (stoppedTask) Stop() bool { return false }

// Group scopes tasks to an owner. Stopping the group cancels every task that
// has not fired yet and turns further scheduling into a no-op.
type Group struct {
	sched Scheduler

	mu      sync.Mutex
	next    uint64
	tasks   map[uint64]Task
	stopped bool
}

func NewGroup(s Scheduler) *Group {
	if s == nil {
		s = System{}
	}
	return &Group{sched: s, tasks: make(map[uint64]Task)}
}

// AfterFunc schedules f through the group. f will not run once the group has
// been stopped, even if its timer already expired and is racing the stop.
func (g *Group) AfterFunc(d time.Duration, f func()) Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return stoppedTask{}
	}

	id := g.next
	g.next++

	t := g.sched.AfterFunc(d, func() {
		g.mu.Lock()
		if g.stopped {
			g.mu.Unlock()
			return
		}
		delete(g.tasks, id)
		g.mu.Unlock()
		f()
	})
	g.tasks[id] = t
	return &groupTask{g: g, id: id, t: t}
}

// groupTask drops its entry from the group when stopped directly.
type groupTask struct {
	g  *Group
	id uint64
	t  Task
}

func (gt *groupTask) Stop() bool {
	gt.g.mu.Lock()
	delete(gt.g.tasks, gt.id)
	gt.g.mu.Unlock()
	return gt.t.Stop()
}

// Pending returns the number of tasks scheduled through the group that have
// neither fired nor been stopped by the group.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

// Stop cancels all outstanding tasks. Safe to call more than once.
func (g *Group) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.stopped = true
	for id, t := range g.tasks {
		t.Stop()
		delete(g.tasks, id)
	}
}

// Stopped reports whether Stop has been called.
func (g *Group) Stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}
