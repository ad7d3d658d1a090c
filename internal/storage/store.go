package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Counters() CounterStore
	Warnings() WarningStore
}

// CounterStore holds the shared counters published by the monitors.
// Each key has exactly one writer component; writes overwrite the whole
// value and are never merged.
type CounterStore interface {
	// Get returns a snapshot of the requested keys. Keys that have never
	// been written are absent from the snapshot.
	Get(ctx context.Context, keys ...Key) (Snapshot, error)
	Set(ctx context.Context, key Key, value int64) error
}

// WarningStore keeps a history of warnings shown on tracked pages.
type WarningStore interface {
	Add(ctx context.Context, record WarningRecord) error
	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (WarningRecord, error)
	List(ctx context.Context, filter WarningFilter) ([]WarningRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// WarningFilter defines criteria for querying warning history.
// Results are returned newest first. A nil TabID matches every tab.
type WarningFilter struct {
	Kind      string
	TabID     *int
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}
