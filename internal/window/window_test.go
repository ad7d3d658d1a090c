package window

import (
	"math/rand"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func TestCounter_EvictsAtExactWindowBoundary(t *testing.T) {
	c := New(2 * time.Minute)

	c.Record(epoch)
	if got := c.Record(epoch.Add(2*time.Minute - time.Millisecond)); got != 2 {
		t.Fatalf("expected 2 events just inside the window, got %d", got)
	}

	// The first event is now exactly W old and must be evicted.
	if got := c.Record(epoch.Add(2 * time.Minute)); got != 2 {
		t.Fatalf("expected event at now-W to be evicted, got count %d", got)
	}
}

func TestCounter_PruneWithoutRecord(t *testing.T) {
	c := New(10 * time.Minute)

	for i := 0; i < 5; i++ {
		c.Record(epoch.Add(time.Duration(i) * time.Minute))
	}
	if c.Len() != 5 {
		t.Fatalf("expected 5 events, got %d", c.Len())
	}

	if got := c.Prune(epoch.Add(12 * time.Minute)); got != 2 {
		t.Errorf("expected 2 events to survive, got %d", got)
	}
	if got := c.Prune(epoch.Add(time.Hour)); got != 0 {
		t.Errorf("expected empty counter, got %d", got)
	}
}

// TestCounter_MatchesBruteForce checks, for random event streams, that the
// counter always equals the number of events in (now-W, now].
func TestCounter_MatchesBruteForce(t *testing.T) {
	windows := []time.Duration{120000 * time.Millisecond, 600000 * time.Millisecond}

	for _, w := range windows {
		t.Run(w.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			c := New(w)

			var all []time.Time
			now := epoch
			for i := 0; i < 2000; i++ {
				// Gaps from 0ms up to a little over a third of the window.
				now = now.Add(time.Duration(rng.Int63n(int64(w/3)/int64(time.Millisecond))) * time.Millisecond)
				all = append(all, now)

				got := c.Record(now)

				want := 0
				for _, ts := range all {
					if now.Sub(ts) < w {
						want++
					}
				}
				if got != want {
					t.Fatalf("event %d: counter=%d, brute force=%d", i, got, want)
				}
			}
		})
	}
}

func TestCounter_BurstWithinWindow(t *testing.T) {
	c := New(2 * time.Minute)

	var got int
	for i := 0; i < 105; i++ {
		got = c.Record(epoch.Add(time.Duration(i) * 10 * time.Millisecond))
	}
	if got != 105 {
		t.Errorf("expected 105, got %d", got)
	}
}
