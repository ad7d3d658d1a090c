package storage

import (
	"fmt"
	"time"
)

// Key names one of the shared counters.
type Key string

const (
	KeyTimeOnSite     Key = "timeOnSite"
	KeyTabSwitchCount Key = "tabSwitchCount"
	KeyScrollCount    Key = "scrollCount"
)

// AllKeys lists every shared counter key.
var AllKeys = []Key{KeyTimeOnSite, KeyTabSwitchCount, KeyScrollCount}

// ParseKey validates a counter key name.
func ParseKey(s string) (Key, error) {
	for _, k := range AllKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown counter key: %s", s)
}

// Snapshot is the result of a counter read.
type Snapshot map[Key]int64

// Value returns the value for key, or 0 when the key was never written.
func (s Snapshot) Value(key Key) int64 {
	return s[key]
}

// WarningRecord is one warning shown on a page.
type WarningRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	PageID    string    `json:"page_id"`
	TabID     int       `json:"tab_id"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// Matches reports whether a record satisfies the filter's criteria.
// Limit is not considered.
func (f WarningFilter) Matches(r WarningRecord) bool {
	if f.Kind != "" && f.Kind != r.Kind {
		return false
	}
	if f.TabID != nil && *f.TabID != r.TabID {
		return false
	}
	if f.StartTime != nil && r.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && r.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}
