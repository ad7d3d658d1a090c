package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func TestManualClock_FiresInDeadlineOrder(t *testing.T) {
	c := NewManual(epoch)

	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	c.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected [a b], got %v", order)
	}

	c.Advance(time.Second)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("expected c to fire last, got %v", order)
	}

	if got := c.Now(); !got.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("expected now %v, got %v", epoch.Add(3*time.Second), got)
	}
}

func TestManualClock_NowIsDeadlineInsideCallback(t *testing.T) {
	c := NewManual(epoch)

	var seen time.Time
	c.AfterFunc(1500*time.Millisecond, func() { seen = c.Now() })
	c.Advance(10 * time.Second)

	if !seen.Equal(epoch.Add(1500 * time.Millisecond)) {
		t.Errorf("expected callback to observe its deadline, got %v", seen)
	}
	if !c.Now().Equal(epoch.Add(10 * time.Second)) {
		t.Errorf("expected clock at target, got %v", c.Now())
	}
}

func TestManualClock_Stop(t *testing.T) {
	c := NewManual(epoch)

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("expected first Stop to report true")
	}
	if timer.Stop() {
		t.Error("expected second Stop to report false")
	}

	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
	if c.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", c.Pending())
	}
}

func TestManualClock_CallbackCanReschedule(t *testing.T) {
	c := NewManual(epoch)

	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(5 * time.Second)
	if count != 5 {
		t.Errorf("expected 5 ticks, got %d", count)
	}
}

func TestPeriodic(t *testing.T) {
	c := NewManual(epoch)

	count := 0
	task := Periodic(c, time.Second, func() { count++ })

	c.Advance(3500 * time.Millisecond)
	if count != 3 {
		t.Fatalf("expected 3 runs, got %d", count)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected exactly one armed timer, got %d", c.Pending())
	}

	task.Stop()
	task.Stop()

	c.Advance(10 * time.Second)
	if count != 3 {
		t.Errorf("expected no runs after Stop, got %d", count)
	}
	if c.Pending() != 0 {
		t.Errorf("expected no pending timers after Stop, got %d", c.Pending())
	}
}

func TestPeriodic_StopFromCallback(t *testing.T) {
	c := NewManual(epoch)

	count := 0
	var task *Task
	task = Periodic(c, time.Second, func() {
		count++
		if count == 2 {
			task.Stop()
		}
	})

	c.Advance(10 * time.Second)
	if count != 2 {
		t.Errorf("expected 2 runs, got %d", count)
	}
}

func TestPeriodic_NoOverlapWithSlowCallback(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		overlap bool
		runs    int
	)
	release := make(chan struct{})

	task := Periodic(RealClock{}, time.Millisecond, func() {
		mu.Lock()
		running++
		if running > 1 {
			overlap = true
		}
		runs++
		first := runs == 1
		mu.Unlock()

		if first {
			// Outlast several intervals.
			<-release
		}

		mu.Lock()
		running--
		mu.Unlock()
	})
	defer task.Stop()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if runs != 1 {
		t.Errorf("expected the next run to wait for the slow one, got %d runs", runs)
	}
	mu.Unlock()

	close(release)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if overlap {
		t.Error("runs overlapped")
	}
	if runs < 2 {
		t.Errorf("expected the task to resume after the slow run, got %d runs", runs)
	}
}

func TestPeriodic_ArmsAfterCallbackReturns(t *testing.T) {
	c := NewManual(epoch)

	var pendingDuringRun int
	Periodic(c, time.Second, func() {
		pendingDuringRun = c.Pending()
	})

	c.Advance(time.Second)
	if pendingDuringRun != 0 {
		t.Errorf("expected no armed timer while the callback runs, got %d", pendingDuringRun)
	}
	if c.Pending() != 1 {
		t.Errorf("expected the next run armed after the callback, got %d", c.Pending())
	}
}
