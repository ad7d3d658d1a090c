// Package activity tracks time on site and scroll volume for a single
// tracked page, and raises warning overlays on that page.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/clock"
	"github.com/goodtune/refocus/internal/metrics"
	"github.com/goodtune/refocus/internal/notify"
	"github.com/goodtune/refocus/internal/storage"
	"github.com/goodtune/refocus/internal/warning"
	"github.com/goodtune/refocus/internal/window"
)

const storeTimeout = 2 * time.Second

// Config defines activity tracking thresholds.
type Config struct {
	TimeThreshold   time.Duration
	TickInterval    time.Duration
	ScrollWindow    time.Duration
	ScrollThreshold int
	// SwitchWindow is the tab switch window quoted in switch warnings.
	SwitchWindow time.Duration
	Warning      warning.Config
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TimeThreshold:   15 * time.Minute,
		TickInterval:    time.Second,
		ScrollWindow:    2 * time.Minute,
		ScrollThreshold: 100,
		SwitchWindow:    10 * time.Minute,
		Warning:         warning.DefaultConfig(),
	}
}

// Page identifies the tracked page a monitor belongs to.
type Page struct {
	ID     string `json:"page_id"`
	TabID  int    `json:"tab_id"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// Deps holds a monitor's collaborators. History is optional.
type Deps struct {
	Clock     clock.Clock
	Counters  storage.CounterStore
	History   storage.WarningStore
	Presenter warning.Presenter
	Logger    zerolog.Logger
}

// Monitor is the activity state of one page, alive for the page's lifetime.
type Monitor struct {
	page     Page
	cfg      Config
	clock    clock.Clock
	counters storage.CounterStore
	history  storage.WarningStore
	warnings *warning.Machine
	logger   zerolog.Logger

	// callbacks serializes tick, scroll and notification handling so each
	// runs to completion, store writes included, before the next starts.
	callbacks sync.Mutex

	mu           sync.Mutex
	running      bool
	sessionStart time.Time
	totalSeconds int64
	tick         *clock.Task
	scrolls      *window.Counter
	openedAt     time.Time
	closed       bool
}

// NewMonitor creates a paused monitor for page. Call Start once the page is
// visible.
func NewMonitor(page Page, cfg Config, deps Deps) *Monitor {
	logger := deps.Logger.With().
		Str("component", "activity").
		Str("page_id", page.ID).
		Int("tab_id", page.TabID).
		Logger()

	return &Monitor{
		page:     page,
		cfg:      cfg,
		clock:    deps.Clock,
		counters: deps.Counters,
		history:  deps.History,
		warnings: warning.NewMachine(cfg.Warning, deps.Clock, deps.Presenter, logger),
		logger:   logger,
		scrolls:  window.New(cfg.ScrollWindow),
		openedAt: deps.Clock.Now(),
	}
}

// Page returns the page this monitor tracks.
func (m *Monitor) Page() Page {
	return m.page
}

// Start resumes time accumulation. Starting a running timer is a no-op, so
// there is never more than one periodic recompute.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.running {
		return
	}
	m.running = true
	m.sessionStart = m.clock.Now()
	m.tick = clock.Periodic(m.clock, m.cfg.TickInterval, m.onTick)
	m.logger.Debug().Msg("Timer running")
}

// Pause stops time accumulation, folding the running stretch into the
// total. Pausing a paused timer is a no-op.
func (m *Monitor) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
}

func (m *Monitor) pauseLocked() {
	if !m.running {
		return
	}
	m.totalSeconds += wholeSeconds(m.clock.Now().Sub(m.sessionStart))
	m.running = false
	m.sessionStart = time.Time{}
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	m.logger.Debug().Int64("total_seconds", m.totalSeconds).Msg("Timer paused")
}

// SetHidden applies a page visibility change.
func (m *Monitor) SetHidden(hidden bool) {
	metrics.EventsTotal.WithLabelValues("visibility").Inc()
	if hidden {
		m.Pause()
	} else {
		m.Start()
	}
}

// Elapsed returns the displayed active time in whole seconds.
func (m *Monitor) Elapsed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

func (m *Monitor) elapsedLocked() int64 {
	if !m.running {
		return m.totalSeconds
	}
	return m.totalSeconds + wholeSeconds(m.clock.Now().Sub(m.sessionStart))
}

func (m *Monitor) onTick() {
	m.callbacks.Lock()
	defer m.callbacks.Unlock()

	m.mu.Lock()
	if m.closed || !m.running {
		m.mu.Unlock()
		return
	}
	elapsed := m.elapsedLocked()
	m.mu.Unlock()

	m.publish(storage.KeyTimeOnSite, elapsed)

	if elapsed >= int64(m.cfg.TimeThreshold/time.Second) {
		m.warn(warning.KindTime, fmt.Sprintf(
			"You've been on social media for %d minutes. Time to refocus! 🚀", elapsed/60))
	}
}

// Scroll records a scroll event and returns the scroll count in the
// current window.
func (m *Monitor) Scroll() int {
	metrics.EventsTotal.WithLabelValues("scroll").Inc()

	m.callbacks.Lock()
	defer m.callbacks.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0
	}
	count := m.scrolls.Record(m.clock.Now())
	m.mu.Unlock()

	m.publish(storage.KeyScrollCount, int64(count))

	if count >= m.cfg.ScrollThreshold {
		m.warn(warning.KindScroll, "You've been scrolling a lot. Maybe take a break ✋")
	}
	return count
}

// ScrollCount returns the scroll count in the current window.
func (m *Monitor) ScrollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scrolls.Prune(m.clock.Now())
}

// Receive handles a pushed notification.
func (m *Monitor) Receive(msg notify.Message) {
	m.callbacks.Lock()
	defer m.callbacks.Unlock()

	switch msg.Type {
	case notify.TypeTabSwitchWarning:
		minutes := int(m.cfg.SwitchWindow / time.Minute)
		m.warn(warning.KindTabSwitch, fmt.Sprintf(
			"You've switched tabs %d times in %d minutes. Time to refocus 🚀", msg.Count, minutes))
	default:
		m.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown notification")
	}
}

// Dismiss handles the overlay's accept control.
func (m *Monitor) Dismiss(overlayID string) bool {
	return m.warnings.Dismiss(overlayID, warning.ReasonAccepted)
}

// WarningState returns the state of the page's warning machine.
func (m *Monitor) WarningState() warning.State {
	return m.warnings.State()
}

// Status is a point-in-time view of a monitor.
type Status struct {
	Page
	OpenedAt       time.Time `json:"opened_at"`
	Running        bool      `json:"running"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	ScrollCount    int       `json:"scroll_count"`
	WarningState   string    `json:"warning_state"`
	// Overlay is set while a warning is on screen.
	Overlay *warning.Overlay `json:"overlay,omitempty"`
}

// Status returns the monitor's current state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	s := Status{
		Page:           m.page,
		OpenedAt:       m.openedAt,
		Running:        m.running,
		ElapsedSeconds: m.elapsedLocked(),
		ScrollCount:    m.scrolls.Prune(m.clock.Now()),
	}
	m.mu.Unlock()

	s.WarningState = m.warnings.State().String()
	if o, ok := m.warnings.Current(); ok {
		s.Overlay = &o
	}
	return s
}

// Close tears the page down, stopping every timer it owns.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.pauseLocked()
	m.closed = true
	total := m.totalSeconds
	m.mu.Unlock()

	m.warnings.Close()
	m.logger.Debug().Int64("total_seconds", total).Msg("Page closed")
}

func (m *Monitor) warn(kind warning.Kind, message string) {
	o, ok := m.warnings.Trigger(kind, message)
	if !ok || m.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := m.history.Add(ctx, storage.WarningRecord{
		ID:        o.ID,
		Timestamp: o.ShownAt,
		PageID:    m.page.ID,
		TabID:     m.page.TabID,
		URL:       m.page.URL,
		Kind:      string(kind),
		Message:   message,
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("warning_add").Inc()
		m.logger.Warn().Err(err).Msg("Failed to record warning")
	}
}

// publish overwrites a shared counter. A failed write is dropped; the next
// event or tick writes the value again.
func (m *Monitor) publish(key storage.Key, value int64) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := m.counters.Set(ctx, key, value); err != nil {
		metrics.StoreErrors.WithLabelValues("counter_set").Inc()
		m.logger.Warn().Err(err).Str("key", string(key)).Msg("Failed to publish counter")
		return
	}
	metrics.CounterValue.WithLabelValues(string(key)).Set(float64(value))
}

func wholeSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}
