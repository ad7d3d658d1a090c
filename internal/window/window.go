// Package window implements the sliding-window event counters used for
// scroll and tab-activation tracking.
package window

import "time"

// Counter holds the timestamps of recent events within a fixed window.
// A timestamp t is retained while t > now-W, so after every mutation the
// counter's value is the number of events in (now-W, now].
//
// Counter is not safe for concurrent use; the owning monitor serializes
// access.
type Counter struct {
	window time.Duration
	stamps []time.Time
}

// New creates a counter over a window of duration w.
func New(w time.Duration) *Counter {
	return &Counter{window: w}
}

// Record appends an event at now, evicts expired events and returns the
// resulting count.
func (c *Counter) Record(now time.Time) int {
	c.stamps = append(c.stamps, now)
	return c.Prune(now)
}

// Prune evicts every timestamp t with t <= now-W and returns the count.
func (c *Counter) Prune(now time.Time) int {
	cutoff := now.Add(-c.window)

	kept := c.stamps[:0]
	for _, t := range c.stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	// Release references held past the new length.
	for i := len(kept); i < len(c.stamps); i++ {
		c.stamps[i] = time.Time{}
	}
	c.stamps = kept

	return len(c.stamps)
}

// Len returns the count as of the last mutation.
func (c *Counter) Len() int {
	return len(c.stamps)
}
