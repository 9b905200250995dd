package schedule

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Scheduler. Callbacks run synchronously on the
// goroutine calling Advance.
type Fake struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*fakeTask
}

type fakeTask struct {
	f     *Fake
	due   time.Duration
	seq   uint64
	fn    func()
	fired bool
	done  bool
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d < 0 {
		d = 0
	}
	t := &fakeTask{f: f, due: f.now + d, seq: f.seq, fn: fn}
	f.seq++
	f.tasks = append(f.tasks, t)
	return t
}

func (t *fakeTask) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if t.fired || t.done {
		return false
	}
	t.done = true
	t.f.remove(t)
	return true
}

func (f *Fake) remove(t *fakeTask) {
	for i, x := range f.tasks {
		if x == t {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, firing due tasks in order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now + d
	f.mu.Unlock()

	for {
		f.mu.Lock()
		sort.SliceStable(f.tasks, func(i, j int) bool {
			if f.tasks[i].due == f.tasks[j].due {
				return f.tasks[i].seq < f.tasks[j].seq
			}
			return f.tasks[i].due < f.tasks[j].due
		})
		if len(f.tasks) == 0 || f.tasks[0].due > target {
			f.now = target
			f.mu.Unlock()
			return
		}
		t := f.tasks[0]
		f.tasks = f.tasks[1:]
		t.fired = true
		f.now = t.due
		f.mu.Unlock()

		t.fn()
	}
}

// Now returns the elapsed fake time.
func (f *Fake) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Pending returns the number of tasks waiting to fire.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}
