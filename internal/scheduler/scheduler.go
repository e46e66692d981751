// Package scheduler runs suspend-then-resume tasks on virtual time that only
// moves when the owning simulation tick advances it.
package scheduler

import (
	"sort"
	"time"
)

// TaskID identifies a scheduled task. Zero is never issued.
type TaskID uint64

type task struct {
	id   TaskID
	name string
	due  time.Duration
	fn   func()
}

// Scheduler is a cooperative virtual-time task queue. It is not safe for
// concurrent use; the vehicle tick that owns it is the only caller.
type Scheduler struct {
	now    time.Duration
	nextID TaskID
	tasks  []*task
}

// New creates a scheduler at virtual time zero.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the current virtual time.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// After schedules fn to run once virtual time has advanced by at least d.
// A non-positive d runs on the next Advance.
func (s *Scheduler) After(name string, d time.Duration, fn func()) TaskID {
	if d < 0 {
		d = 0
	}
	s.nextID++
	s.tasks = append(s.tasks, &task{
		id:   s.nextID,
		name: name,
		due:  s.now + d,
		fn:   fn,
	})
	return s.nextID
}

// Cancel removes a pending task. It reports whether the task was still pending.
func (s *Scheduler) Cancel(id TaskID) bool {
	for i, t := range s.tasks {
		if t.id == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// CancelAll drops every pending task and returns how many were dropped.
func (s *Scheduler) CancelAll() int {
	n := len(s.tasks)
	s.tasks = s.tasks[:0]
	return n
}

// Advance moves virtual time forward by dt and runs every task that has come
// due, ordered by due time and then by scheduling order. Tasks scheduled by a
// running task are picked up in the same call when they are already due.
// It returns the number of tasks run.
func (s *Scheduler) Advance(dt time.Duration) int {
	if dt > 0 {
		s.now += dt
	}

	ran := 0
	for {
		t := s.popDue()
		if t == nil {
			return ran
		}
		t.fn()
		ran++
	}
}

func (s *Scheduler) popDue() *task {
	idx := -1
	for i, t := range s.tasks {
		if t.due > s.now {
			continue
		}
		if idx < 0 || t.due < s.tasks[idx].due || (t.due == s.tasks[idx].due && t.id < s.tasks[idx].id) {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}
	t := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	return t
}

// Pending returns the number of tasks that have not run yet.
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

// PendingTask describes a task waiting to run.
type PendingTask struct {
	ID        TaskID
	Name      string
	Remaining time.Duration
}

// PendingTasks lists waiting tasks ordered by due time.
func (s *Scheduler) PendingTasks() []PendingTask {
	out := make([]PendingTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, PendingTask{ID: t.id, Name: t.name, Remaining: t.due - s.now})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Remaining == out[j].Remaining {
			return out[i].ID < out[j].ID
		}
		return out[i].Remaining < out[j].Remaining
	})
	return out
}
