package tabs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/clock"
)

func newTestRegistry(t *testing.T, size int) (*Registry, *clock.ManualClock) {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	r, err := NewRegistry(size, clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return r, clk
}

func TestRegistry_Resolve(t *testing.T) {
	r, clk := newTestRegistry(t, 8)
	ctx := context.Background()

	r.Update(7, "https://www.reddit.com/")
	url, err := r.Resolve(ctx, 7)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if url != "https://www.reddit.com/" {
		t.Errorf("Expected reddit URL, got %q", url)
	}

	clk.Advance(time.Minute)
	r.Update(7, "https://example.com/")
	entry, ok := r.Get(7)
	if !ok {
		t.Fatal("Expected entry for tab 7")
	}
	if entry.URL != "https://example.com/" {
		t.Errorf("Expected URL overwrite, got %q", entry.URL)
	}
	if !entry.UpdatedAt.Equal(clk.Now()) {
		t.Errorf("Expected UpdatedAt %v, got %v", clk.Now(), entry.UpdatedAt)
	}
}

func TestRegistry_UnknownAndRemoved(t *testing.T) {
	r, _ := newTestRegistry(t, 8)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, 1); !errors.Is(err, ErrUnknownTab) {
		t.Errorf("Expected ErrUnknownTab, got %v", err)
	}

	r.Update(1, "https://x.com/")
	if !r.Remove(1) {
		t.Error("Expected Remove to report removal")
	}
	if _, err := r.Resolve(ctx, 1); !errors.Is(err, ErrUnknownTab) {
		t.Errorf("Expected ErrUnknownTab after removal, got %v", err)
	}
}

func TestRegistry_EmptyURL(t *testing.T) {
	r, _ := newTestRegistry(t, 8)

	// Privileged pages are reported without a URL.
	r.Update(3, "")
	url, err := r.Resolve(context.Background(), 3)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if url != "" {
		t.Errorf("Expected empty URL, got %q", url)
	}
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r, _ := newTestRegistry(t, 2)

	r.Update(1, "https://youtube.com/")
	r.Update(2, "https://reddit.com/")
	r.Get(1)
	r.Update(3, "https://x.com/")

	if r.Len() != 2 {
		t.Fatalf("Expected 2 tabs, got %d", r.Len())
	}
	if _, ok := r.Get(2); ok {
		t.Error("Expected tab 2 to be evicted")
	}
	if _, ok := r.Get(1); !ok {
		t.Error("Expected tab 1 to survive")
	}
}

func TestRegistry_CancelledContext(t *testing.T) {
	r, _ := newTestRegistry(t, 8)
	r.Update(1, "https://x.com/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestNewRegistry_InvalidSize(t *testing.T) {
	if _, err := NewRegistry(0, clock.RealClock{}, zerolog.Nop()); err == nil {
		t.Error("Expected error for zero size")
	}
}
