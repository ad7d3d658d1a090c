// Package switches counts tab activations across the whole browser and
// warns the newly active tab when switching gets out of hand.
package switches

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/clock"
	"github.com/goodtune/refocus/internal/domains"
	"github.com/goodtune/refocus/internal/metrics"
	"github.com/goodtune/refocus/internal/notify"
	"github.com/goodtune/refocus/internal/storage"
	"github.com/goodtune/refocus/internal/tabs"
	"github.com/goodtune/refocus/internal/window"
)

const storeTimeout = 2 * time.Second

// Config defines the switch window and warning threshold.
type Config struct {
	Window    time.Duration
	Threshold int
}

// DefaultConfig returns a 10 minute window with a threshold of 20.
func DefaultConfig() Config {
	return Config{
		Window:    10 * time.Minute,
		Threshold: 20,
	}
}

// Monitor is the browser-wide tab activation counter.
type Monitor struct {
	cfg      Config
	clock    clock.Clock
	counters storage.CounterStore
	resolver tabs.Resolver
	matcher  *domains.Matcher
	sender   notify.Sender
	logger   zerolog.Logger

	// callbacks serializes activations end to end so published counts
	// land in arrival order.
	callbacks sync.Mutex

	mu          sync.Mutex
	activations *window.Counter
}

// NewMonitor creates a switch monitor.
func NewMonitor(
	cfg Config,
	clk clock.Clock,
	counters storage.CounterStore,
	resolver tabs.Resolver,
	matcher *domains.Matcher,
	sender notify.Sender,
	logger zerolog.Logger,
) *Monitor {
	return &Monitor{
		cfg:         cfg,
		clock:       clk,
		counters:    counters,
		resolver:    resolver,
		matcher:     matcher,
		sender:      sender,
		logger:      logger.With().Str("component", "switches").Logger(),
		activations: window.New(cfg.Window),
	}
}

// TabActivated records an activation of tabID and returns the activation
// count in the current window. Once the count reaches the threshold, a
// warning is pushed to the tab if it shows a tracked site.
func (m *Monitor) TabActivated(ctx context.Context, tabID int) int {
	metrics.EventsTotal.WithLabelValues("tab_activated").Inc()

	m.callbacks.Lock()
	defer m.callbacks.Unlock()

	m.mu.Lock()
	count := m.activations.Record(m.clock.Now())
	m.mu.Unlock()

	m.publish(ctx, count)

	if count >= m.cfg.Threshold {
		m.notify(ctx, tabID, count)
	}
	return count
}

// Count returns the activation count in the current window.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activations.Prune(m.clock.Now())
}

func (m *Monitor) publish(ctx context.Context, count int) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := m.counters.Set(ctx, storage.KeyTabSwitchCount, int64(count)); err != nil {
		metrics.StoreErrors.WithLabelValues("counter_set").Inc()
		m.logger.Warn().Err(err).Msg("Failed to publish tab switch count")
		return
	}
	metrics.CounterValue.WithLabelValues(string(storage.KeyTabSwitchCount)).Set(float64(count))
}

// notify resolves the tab's URL and pushes a warning when it is tracked.
// Resolution failures and untracked URLs skip the warning without retry.
func (m *Monitor) notify(ctx context.Context, tabID, count int) {
	url, err := m.resolver.Resolve(ctx, tabID)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("unresolved").Inc()
		m.logger.Debug().Err(err).Int("tab_id", tabID).Msg("Could not resolve tab URL")
		return
	}
	if url == "" {
		metrics.NotificationsTotal.WithLabelValues("unresolved").Inc()
		return
	}

	domain, ok := m.matcher.Match(url)
	if !ok {
		metrics.NotificationsTotal.WithLabelValues("untracked").Inc()
		return
	}

	m.logger.Info().
		Int("tab_id", tabID).
		Int("count", count).
		Str("domain", domain).
		Msg("Tab switch threshold reached")

	m.sender.Send(tabID, notify.Message{
		Type:  notify.TypeTabSwitchWarning,
		Count: count,
	})
}
