package activity

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/domains"
	"github.com/goodtune/refocus/internal/metrics"
	"github.com/goodtune/refocus/internal/notify"
	"github.com/goodtune/refocus/internal/warning"
)

// ErrUntracked is returned when a page's URL is not on a tracked domain.
var ErrUntracked = errors.New("activity: url is not tracked")

// Registry owns the monitors of every connected page.
type Registry struct {
	cfg     Config
	deps    Deps
	matcher *domains.Matcher
	hub     *notify.Hub
	logger  zerolog.Logger

	mu    sync.Mutex
	pages map[string]*entry
}

type entry struct {
	monitor    *Monitor
	unregister func()
}

// NewRegistry creates a registry. The presenter in deps is ignored; each
// page supplies its own.
func NewRegistry(cfg Config, deps Deps, matcher *domains.Matcher, hub *notify.Hub) *Registry {
	return &Registry{
		cfg:     cfg,
		deps:    deps,
		matcher: matcher,
		hub:     hub,
		logger:  deps.Logger.With().Str("component", "pages").Logger(),
		pages:   make(map[string]*entry),
	}
}

// Open starts a monitor for a page loaded in tabID and registers it for
// the tab's notifications. The timer starts running immediately.
func (r *Registry) Open(tabID int, url string, presenter warning.Presenter) (*Monitor, error) {
	domain, ok := r.matcher.Match(url)
	if !ok {
		return nil, ErrUntracked
	}

	page := Page{
		ID:     uuid.NewString(),
		TabID:  tabID,
		URL:    url,
		Domain: domain,
	}

	deps := r.deps
	deps.Presenter = presenter
	m := NewMonitor(page, r.cfg, deps)
	m.Start()

	unregister := r.hub.Register(tabID, page.ID, m)

	r.mu.Lock()
	r.pages[page.ID] = &entry{monitor: m, unregister: unregister}
	r.mu.Unlock()

	metrics.ActivePages.Inc()
	r.logger.Info().
		Str("page_id", page.ID).
		Int("tab_id", tabID).
		Str("domain", domain).
		Msg("Page opened")

	return m, nil
}

// Close tears down a page's monitor. Unknown IDs are ignored.
func (r *Registry) Close(pageID string) {
	r.mu.Lock()
	e, ok := r.pages[pageID]
	if ok {
		delete(r.pages, pageID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	e.unregister()
	e.monitor.Close()
	metrics.ActivePages.Dec()
	r.logger.Info().Str("page_id", pageID).Msg("Page closed")
}

// Get returns a page's monitor.
func (r *Registry) Get(pageID string) (*Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pages[pageID]
	if !ok {
		return nil, false
	}
	return e.monitor, true
}

// List returns the status of every open page, oldest first.
func (r *Registry) List() []Status {
	r.mu.Lock()
	monitors := make([]*Monitor, 0, len(r.pages))
	for _, e := range r.pages {
		monitors = append(monitors, e.monitor)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, m.Status())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// CloseAll tears down every open page.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.pages))
	for id := range r.pages {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Close(id)
	}
}
