// Package runloop defers work until the current synchronous handler has returned.
//
// A Queue holds at most one pending task. Scheduling while a task is pending
// replaces it, so when one event emits several navigations only the last one runs.
// The host drains the queue after each handled event.
package runloop

import (
	"context"
	"sync"
)

// Task is deferred work.
type Task struct {
	// Name describes the task for logs ("transitionTo vault.cluster.tools.tool").
	Name string
	Run  func(ctx context.Context) error
}

// Queue is a single-slot pending task.
// Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	pending *Task
	dropped int
}

// Schedule sets t as the pending task. It reports whether a previous task was replaced.
func (q *Queue) Schedule(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	replaced := q.pending != nil
	if replaced {
		q.dropped++
	}
	q.pending = &t
	return replaced
}

// Pending returns the name of the pending task, if any.
func (q *Queue) Pending() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == nil {
		return "", false
	}
	return q.pending.Name, true
}

// Drain runs the pending task, if any, and empties the slot.
// Tasks scheduled by the running task stay pending for the next Drain.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	t := q.pending
	q.pending = nil
	q.mu.Unlock()

	if t == nil || t.Run == nil {
		return nil
	}
	return t.Run(ctx)
}

// Discard drops the pending task without running it.
func (q *Queue) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
}

// Dropped returns how many tasks were replaced before running.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
