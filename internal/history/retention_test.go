package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/clock"
	"github.com/goodtune/refocus/internal/storage"
	"github.com/goodtune/refocus/internal/storage/bolt"
)

func setupStore(t *testing.T) storage.WarningStore {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "refocus.bolt"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store.Warnings()
}

func TestRetention_CalculateNextRun(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before cleanup time",
			now:  time.Date(2024, 1, 15, 1, 30, 0, 0, time.UTC),
			want: time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at cleanup time",
			now:  time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "after cleanup time",
			now:  time.Date(2024, 1, 15, 22, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRetention(nil, 30, "03:00", clock.NewManual(tt.now), zerolog.Nop())
			if err != nil {
				t.Fatalf("NewRetention failed: %v", err)
			}
			if got := r.calculateNextRun(); !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRetention_DailyCleanup(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	clk := clock.NewManual(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	old := clk.Now().AddDate(0, 0, -40)
	recent := clk.Now().AddDate(0, 0, -2)
	for _, ts := range []time.Time{old, old.Add(time.Hour), recent} {
		if err := store.Add(ctx, storage.WarningRecord{Timestamp: ts, Kind: "scroll", TabID: 1}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	r, err := NewRetention(store, 30, "03:00", clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetention failed: %v", err)
	}
	r.Start()
	defer r.Stop()

	if clk.Pending() != 1 {
		t.Fatalf("Expected one scheduled cleanup, got %d", clk.Pending())
	}

	// Next run is 03:00 the following day.
	clk.Advance(15 * time.Hour)

	records, err := store.List(ctx, storage.WarningFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record after cleanup, got %d", len(records))
	}
	if !records[0].Timestamp.Equal(recent) {
		t.Errorf("Expected recent record to survive, got %v", records[0].Timestamp)
	}

	if clk.Pending() != 1 {
		t.Errorf("Expected cleanup to reschedule itself, got %d timers", clk.Pending())
	}
}

func TestRetention_StopCancels(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	r, err := NewRetention(setupStore(t), 30, "03:00", clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetention failed: %v", err)
	}

	r.Start()
	r.Stop()
	r.Stop()

	if clk.Pending() != 0 {
		t.Errorf("Expected no pending cleanup after stop, got %d", clk.Pending())
	}
}

func TestRetention_DisabledWhenZeroDays(t *testing.T) {
	r, err := NewRetention(nil, 0, "03:00", clock.NewManual(time.Now()), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetention failed: %v", err)
	}
	n, err := r.Cleanup(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Expected no-op cleanup, got %d, %v", n, err)
	}
}

func TestNewRetention_InvalidTime(t *testing.T) {
	if _, err := NewRetention(nil, 30, "3am", clock.RealClock{}, zerolog.Nop()); err == nil {
		t.Error("Expected error for invalid cleanup time")
	}
}
