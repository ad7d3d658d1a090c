package clock

import (
	"sync"
	"time"
)

// Task is a cancellable repeating callback. The next run is armed only
// after the current one returns, so runs never overlap and at most one
// callback is ever pending for a task.
type Task struct {
	clock    Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   Timer
	stopped bool
}

// Periodic starts a task that calls fn every interval until Stop is called.
func Periodic(c Clock, interval time.Duration, fn func()) *Task {
	t := &Task{
		clock:    c,
		interval: interval,
		fn:       fn,
	}
	t.mu.Lock()
	t.arm()
	t.mu.Unlock()
	return t
}

// arm must be called with t.mu held.
func (t *Task) arm() {
	t.timer = t.clock.AfterFunc(t.interval, t.run)
}

func (t *Task) run() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	// fn may stop the task, so t.mu is not held while it runs.
	t.fn()

	t.mu.Lock()
	if !t.stopped {
		t.arm()
	}
	t.mu.Unlock()
}

// Stop cancels the task. Calling Stop more than once is a no-op.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
