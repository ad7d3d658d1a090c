// Package stats renders the shared counters for the popup.
package stats

import (
	"context"
	"fmt"

	"github.com/goodtune/refocus/internal/storage"
)

// Scroll levels.
const (
	ScrollLow    = "Low"
	ScrollMedium = "Medium"
	ScrollHigh   = "High ⚠️"
)

// Thresholds decide when a value is shown in the warning state.
type Thresholds struct {
	TimeSeconds  int64
	TabSwitches  int64
	ScrollMedium int64
	ScrollHigh   int64
}

// DefaultThresholds returns the thresholds used by the monitors.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TimeSeconds:  900,
		TabSwitches:  20,
		ScrollMedium: 50,
		ScrollHigh:   100,
	}
}

// Item is one rendered value.
type Item struct {
	Value   int64  `json:"value"`
	Display string `json:"display"`
	Warning bool   `json:"warning"`
}

// View is the rendered popup.
type View struct {
	TimeOnSite     Item `json:"time_on_site"`
	TabSwitchCount Item `json:"tab_switch_count"`
	ScrollCount    Item `json:"scroll_count"`
}

// Read fetches all three counters and renders them.
func Read(ctx context.Context, counters storage.CounterStore, th Thresholds) (View, error) {
	snap, err := counters.Get(ctx, storage.AllKeys...)
	if err != nil {
		return View{}, fmt.Errorf("read counters: %w", err)
	}
	return Format(snap, th), nil
}

// Format renders a snapshot. Keys missing from the snapshot render as 0.
func Format(snap storage.Snapshot, th Thresholds) View {
	seconds := snap.Value(storage.KeyTimeOnSite)
	switchCount := snap.Value(storage.KeyTabSwitchCount)
	scrolls := snap.Value(storage.KeyScrollCount)

	return View{
		TimeOnSite: Item{
			Value:   seconds,
			Display: FormatDuration(seconds),
			Warning: seconds >= th.TimeSeconds,
		},
		TabSwitchCount: Item{
			Value:   switchCount,
			Display: fmt.Sprintf("%d", switchCount),
			Warning: switchCount >= th.TabSwitches,
		},
		ScrollCount: Item{
			Value:   scrolls,
			Display: ScrollLevel(scrolls, th),
			Warning: scrolls >= th.ScrollHigh,
		},
	}
}

// FormatDuration renders seconds as "Mm Ss".
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// ScrollLevel buckets a scroll count.
func ScrollLevel(count int64, th Thresholds) string {
	switch {
	case count >= th.ScrollHigh:
		return ScrollHigh
	case count >= th.ScrollMedium:
		return ScrollMedium
	default:
		return ScrollLow
	}
}
