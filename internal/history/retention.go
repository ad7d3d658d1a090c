// Package history prunes the warning history on a daily schedule.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/clock"
	"github.com/goodtune/refocus/internal/metrics"
	"github.com/goodtune/refocus/internal/storage"
)

// Retention deletes warning records older than the retention period once a
// day at a fixed time of day.
type Retention struct {
	store         storage.WarningStore
	retentionDays int
	cleanupTime   time.Time // Only hour and minute are used
	clock         clock.Clock
	logger        zerolog.Logger

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
}

// NewRetention creates a retention scheduler. cleanupTime is HH:MM in the
// clock's local time.
func NewRetention(store storage.WarningStore, retentionDays int, cleanupTime string, clk clock.Clock, logger zerolog.Logger) (*Retention, error) {
	// Parse cleanup time (HH:MM format)
	parsed, err := time.Parse("15:04", cleanupTime)
	if err != nil {
		return nil, err
	}

	return &Retention{
		store:         store,
		retentionDays: retentionDays,
		cleanupTime:   parsed,
		clock:         clk,
		logger:        logger.With().Str("component", "history-retention").Logger(),
	}, nil
}

// Start schedules the first cleanup
func (r *Retention) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scheduleLocked()
	r.logger.Info().
		Str("cleanup_time", r.cleanupTime.Format("15:04")).
		Int("retention_days", r.retentionDays).
		Msg("Warning history retention started")
}

// Stop cancels the pending cleanup
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.logger.Info().Msg("Warning history retention stopped")
}

func (r *Retention) scheduleLocked() {
	if r.stopped {
		return
	}
	next := r.calculateNextRun()
	wait := next.Sub(r.clock.Now())

	r.logger.Debug().
		Time("next_cleanup", next).
		Dur("wait_duration", wait).
		Msg("Scheduled next history cleanup")

	r.timer = r.clock.AfterFunc(wait, r.run)
}

func (r *Retention) run() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if _, err := r.Cleanup(context.Background()); err != nil {
		r.logger.Error().Err(err).Msg("Failed to clean up warning history")
	}

	r.mu.Lock()
	r.scheduleLocked()
	r.mu.Unlock()
}

// calculateNextRun returns the next occurrence of the cleanup time
func (r *Retention) calculateNextRun() time.Time {
	now := r.clock.Now()

	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		r.cleanupTime.Hour(), r.cleanupTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already reached today's cleanup time, schedule for tomorrow
	if !now.Before(today) {
		return today.AddDate(0, 0, 1)
	}

	return today
}

// Cleanup deletes records older than the retention period and returns how
// many were removed.
func (r *Retention) Cleanup(ctx context.Context) (int, error) {
	if r.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := r.clock.Now().AddDate(0, 0, -r.retentionDays)
	deleted, err := r.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("warning_delete").Inc()
		return 0, err
	}

	r.logger.Info().
		Int("records_deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Warning history cleaned up")

	return deleted, nil
}
