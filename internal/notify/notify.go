// Package notify carries push notifications from the switch monitor to the
// activity monitor of a specific tab. Delivery is one-way and best effort:
// there is no acknowledgement, no retry and no error returned to the sender.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/metrics"
)

// TypeTabSwitchWarning is the only message type currently defined.
const TypeTabSwitchWarning = "TAB_SWITCH_WARNING"

// Message is a push notification.
type Message struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Sender delivers a message to one tab. It gives no delivery guarantee and
// never reports failure to the caller.
type Sender interface {
	Send(tabID int, msg Message)
}

// Receiver handles messages pushed to a tab.
type Receiver interface {
	Receive(msg Message)
}

// Hub routes messages to the receivers registered for each tab.
type Hub struct {
	mu        sync.RWMutex
	receivers map[int]map[string]Receiver
	logger    zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		receivers: make(map[int]map[string]Receiver),
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Register attaches a receiver to a tab under a unique id. The returned
// function removes the registration and may be called more than once.
func (h *Hub) Register(tabID int, id string, r Receiver) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.receivers[tabID]
	if !ok {
		byID = make(map[string]Receiver)
		h.receivers[tabID] = byID
	}
	byID[id] = r

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		byID, ok := h.receivers[tabID]
		if !ok {
			return
		}
		delete(byID, id)
		if len(byID) == 0 {
			delete(h.receivers, tabID)
		}
	}
}

// Send delivers msg to every receiver registered for the tab. A tab with no
// listener is tolerated silently.
func (h *Hub) Send(tabID int, msg Message) {
	h.mu.RLock()
	targets := make([]Receiver, 0, len(h.receivers[tabID]))
	for _, r := range h.receivers[tabID] {
		targets = append(targets, r)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		metrics.NotificationsTotal.WithLabelValues("no_listener").Inc()
		h.logger.Debug().
			Int("tab_id", tabID).
			Str("type", msg.Type).
			Msg("No listener for notification")
		return
	}

	for _, r := range targets {
		r.Receive(msg)
	}
	metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
	h.logger.Debug().
		Int("tab_id", tabID).
		Str("type", msg.Type).
		Int("count", msg.Count).
		Int("receivers", len(targets)).
		Msg("Notification delivered")
}

// Listeners returns the number of receivers registered for a tab.
func (h *Hub) Listeners(tabID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.receivers[tabID])
}
