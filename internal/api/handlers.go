package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/goodtune/refocus/internal/stats"
	"github.com/goodtune/refocus/internal/storage"
)

const (
	defaultWarningLimit = 50
	maxWarningLimit     = 500
)

// TabActivatedRequest is sent by the background shim whenever the active
// tab changes. URL is optional; when present it refreshes the tab registry
// before the activation is counted.
type TabActivatedRequest struct {
	TabID int    `json:"tab_id"`
	URL   string `json:"url,omitempty"`
}

// TabUpdateRequest reports a tab's current URL.
type TabUpdateRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"active_pages": len(s.deps.Pages.List()),
		"known_tabs":   s.deps.Tabs.Len(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	view, err := stats.Read(r.Context(), s.deps.Counters, s.deps.Thresholds)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read stats")
		writeError(w, http.StatusServiceUnavailable, "Counters unavailable")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	keys := storage.AllKeys
	if names := r.URL.Query()["key"]; len(names) > 0 {
		keys = make([]storage.Key, 0, len(names))
		for _, name := range names {
			key, err := storage.ParseKey(name)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			keys = append(keys, key)
		}
	}

	snap, err := s.deps.Counters.Get(r.Context(), keys...)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read counters")
		writeError(w, http.StatusServiceUnavailable, "Counters unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTabActivated(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}

	var req TabActivatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TabID < 0 {
		writeError(w, http.StatusBadRequest, "tab_id must not be negative")
		return
	}

	if req.URL != "" {
		s.deps.Tabs.Update(req.TabID, req.URL)
	}

	count := s.deps.Switches.TabActivated(r.Context(), req.TabID)
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleTabUpdate(w http.ResponseWriter, r *http.Request) {
	tabID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tab ID")
		return
	}

	if !requireJSON(w, r) {
		return
	}

	var req TabUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.deps.Tabs.Update(tabID, req.URL)
	entry, _ := s.deps.Tabs.Get(tabID)

	_, tracked := s.deps.Matcher.Match(req.URL)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tab":     entry,
		"tracked": tracked,
	})
}

func (s *Server) handleTabRemove(w http.ResponseWriter, r *http.Request) {
	tabID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tab ID")
		return
	}

	if !s.deps.Tabs.Remove(tabID) {
		writeError(w, http.StatusNotFound, "Tab not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	pages := s.deps.Pages.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pages": pages,
		"count": len(pages),
	})
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := storage.WarningFilter{
		Kind:  query.Get("kind"),
		Limit: defaultWarningLimit,
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if limit > maxWarningLimit {
			limit = maxWarningLimit
		}
		filter.Limit = limit
	}

	if tabStr := query.Get("tab_id"); tabStr != "" {
		tabID, err := strconv.Atoi(tabStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tab_id")
			return
		}
		filter.TabID = &tabID
	}

	for _, bound := range []struct {
		param string
		dst   **time.Time
	}{
		{"since", &filter.StartTime},
		{"until", &filter.EndTime},
	} {
		v := query.Get(bound.param)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+bound.param+": expected RFC 3339 timestamp")
			return
		}
		*bound.dst = &ts
	}
	if filter.StartTime != nil && filter.EndTime != nil && filter.EndTime.Before(*filter.StartTime) {
		writeError(w, http.StatusBadRequest, "until must not be before since")
		return
	}

	records, err := s.deps.History.List(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list warnings")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve warnings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"warnings": records,
		"count":    len(records),
	})
}

func (s *Server) handleWarning(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := s.deps.History.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Warning not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("warning_id", id).Msg("Failed to get warning")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve warning")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// requireJSON rejects bodies not declared as JSON, which a cross-site form
// or text/plain post cannot do without a preflight.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}
