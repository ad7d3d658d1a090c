// Package tabs resolves browser tab IDs to their current URL.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/clock"
)

// ErrUnknownTab is returned when a tab has no recorded URL.
var ErrUnknownTab = errors.New("tabs: unknown tab")

// Resolver looks up a tab's current URL.
type Resolver interface {
	Resolve(ctx context.Context, tabID int) (string, error)
}

// Entry is the last known state of a tab.
type Entry struct {
	TabID     int       `json:"tab_id"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is a bounded cache of tab URLs fed by the browser shim.
// Least recently touched tabs are evicted first.
type Registry struct {
	cache  *lru.Cache[int, Entry]
	clock  clock.Clock
	logger zerolog.Logger
}

// NewRegistry creates a registry holding at most size tabs.
func NewRegistry(size int, clk clock.Clock, logger zerolog.Logger) (*Registry, error) {
	cache, err := lru.New[int, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tab cache: %w", err)
	}
	return &Registry{
		cache:  cache,
		clock:  clk,
		logger: logger.With().Str("component", "tabs").Logger(),
	}, nil
}

// Update records the current URL of a tab.
func (r *Registry) Update(tabID int, url string) {
	r.cache.Add(tabID, Entry{
		TabID:     tabID,
		URL:       url,
		UpdatedAt: r.clock.Now(),
	})
	r.logger.Debug().Int("tab_id", tabID).Str("url", url).Msg("Tab updated")
}

// Remove forgets a closed tab.
func (r *Registry) Remove(tabID int) bool {
	return r.cache.Remove(tabID)
}

// Get returns the recorded entry for a tab.
func (r *Registry) Get(tabID int) (Entry, bool) {
	return r.cache.Get(tabID)
}

// Len returns the number of known tabs.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Resolve returns the tab's URL. A tab that was never reported returns
// ErrUnknownTab; a known tab may legitimately have an empty URL.
func (r *Registry) Resolve(ctx context.Context, tabID int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	entry, ok := r.cache.Get(tabID)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownTab, tabID)
	}
	return entry.URL, nil
}
