// Package warning implements the per-page warning overlay state machine.
//
// A machine shows at most one overlay at a time. Once the overlay is
// dismissed, by the user or by its auto-dismiss timer, the machine cools
// down for a fixed period before another overlay may be shown. Triggers
// arriving while an overlay is showing or during cooldown are dropped,
// whatever their source.
package warning

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/clock"
	"github.com/goodtune/refocus/internal/metrics"
)

// State is the warning machine's state.
type State int

const (
	Idle State = iota
	Showing
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Showing:
		return "showing"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Kind identifies which signal raised a warning.
type Kind string

const (
	KindTime      Kind = "time"
	KindScroll    Kind = "scroll"
	KindTabSwitch Kind = "tab_switch"
)

// DismissReason records why an overlay was removed.
type DismissReason string

const (
	ReasonAccepted DismissReason = "accepted"
	ReasonTimeout  DismissReason = "timeout"
)

// AcceptLabel is the text of the overlay's accept control.
const AcceptLabel = "Got it ✓"

// Overlay describes a single dismissible warning.
type Overlay struct {
	ID          string        `json:"id"`
	Kind        Kind          `json:"kind"`
	Message     string        `json:"message"`
	AcceptLabel string        `json:"accept_label"`
	ShownAt     time.Time     `json:"shown_at"`
	AutoDismiss time.Duration `json:"-"`
}

// Presenter displays and removes overlays on the page.
// Calls are made while the machine's lock is held and must not block or
// call back into the machine.
type Presenter interface {
	Show(o Overlay)
	Hide(o Overlay, reason DismissReason)
}

// Config defines overlay timing.
type Config struct {
	AutoDismiss time.Duration
	Cooldown    time.Duration
}

// DefaultConfig returns the standard overlay timing.
func DefaultConfig() Config {
	return Config{
		AutoDismiss: 15 * time.Second,
		Cooldown:    60 * time.Second,
	}
}

// Machine is the warning state for one page.
type Machine struct {
	cfg       Config
	clock     clock.Clock
	presenter Presenter
	logger    zerolog.Logger

	mu            sync.Mutex
	state         State
	current       Overlay
	dismissTimer  clock.Timer
	cooldownTimer clock.Timer
	cooldownGen   uint64
	closed        bool
}

// NewMachine creates an idle warning machine.
func NewMachine(cfg Config, clk clock.Clock, presenter Presenter, logger zerolog.Logger) *Machine {
	return &Machine{
		cfg:       cfg,
		clock:     clk,
		presenter: presenter,
		logger:    logger.With().Str("component", "warning").Logger(),
	}
}

// Trigger shows an overlay with the given message if the machine is idle.
// It reports the overlay and true when one was shown; any other state
// drops the trigger.
func (m *Machine) Trigger(kind Kind, message string) (Overlay, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.state != Idle {
		metrics.WarningsTotal.WithLabelValues(string(kind), "suppressed").Inc()
		m.logger.Debug().
			Str("kind", string(kind)).
			Str("state", m.state.String()).
			Msg("Warning suppressed")
		return Overlay{}, false
	}

	o := Overlay{
		ID:          uuid.NewString(),
		Kind:        kind,
		Message:     message,
		AcceptLabel: AcceptLabel,
		ShownAt:     m.clock.Now(),
		AutoDismiss: m.cfg.AutoDismiss,
	}
	m.state = Showing
	m.current = o
	m.presenter.Show(o)

	id := o.ID
	m.dismissTimer = m.clock.AfterFunc(m.cfg.AutoDismiss, func() {
		m.Dismiss(id, ReasonTimeout)
	})

	metrics.WarningsTotal.WithLabelValues(string(kind), "shown").Inc()
	m.logger.Info().
		Str("kind", string(kind)).
		Str("overlay_id", id).
		Msg("Warning shown")

	return o, true
}

// Dismiss removes the overlay with the given ID and starts the cooldown.
// Manual and automatic dismissal behave identically. A dismissal for an
// overlay that is no longer showing is ignored.
func (m *Machine) Dismiss(id string, reason DismissReason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.state != Showing || m.current.ID != id {
		return false
	}

	if m.dismissTimer != nil {
		m.dismissTimer.Stop()
		m.dismissTimer = nil
	}

	o := m.current
	m.current = Overlay{}
	m.state = Cooldown
	m.presenter.Hide(o, reason)

	m.cooldownGen++
	gen := m.cooldownGen
	m.cooldownTimer = m.clock.AfterFunc(m.cfg.Cooldown, func() {
		m.endCooldown(gen)
	})

	m.logger.Debug().
		Str("overlay_id", id).
		Str("reason", string(reason)).
		Msg("Warning dismissed")

	return true
}

func (m *Machine) endCooldown(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.state != Cooldown || m.cooldownGen != gen {
		return
	}
	m.state = Idle
	m.cooldownTimer = nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the overlay being shown, if any.
func (m *Machine) Current() (Overlay, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Showing {
		return Overlay{}, false
	}
	return m.current, true
}

// Close stops all pending timers. The page is gone, so the presenter is
// not called and every later trigger is dropped.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	if m.dismissTimer != nil {
		m.dismissTimer.Stop()
		m.dismissTimer = nil
	}
	if m.cooldownTimer != nil {
		m.cooldownTimer.Stop()
		m.cooldownTimer = nil
	}
}
