package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/activity"
	"github.com/goodtune/refocus/internal/warning"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendQueueDepth = 16
)

// Frame types exchanged with the content shim.
const (
	FrameScroll      = "scroll"
	FrameVisibility  = "visibility"
	FrameDismiss     = "dismiss"
	FrameShowWarning = "show_warning"
	FrameHideWarning = "hide_warning"
)

// ClientFrame is an event sent by a tracked page.
type ClientFrame struct {
	Type   string `json:"type"`
	Hidden bool   `json:"hidden,omitempty"`
	ID     string `json:"id,omitempty"`
}

// ServerFrame is an overlay command sent to a tracked page.
type ServerFrame struct {
	Type          string `json:"type"`
	ID            string `json:"id"`
	Kind          string `json:"kind,omitempty"`
	Message       string `json:"message,omitempty"`
	AcceptLabel   string `json:"accept_label,omitempty"`
	AutoDismissMs int64  `json:"auto_dismiss_ms,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// pageSession presents overlays on one page over its WebSocket connection.
// All writes go through a bounded queue drained by writePump; frames that
// do not fit are dropped.
type pageSession struct {
	conn   *websocket.Conn
	send   chan ServerFrame
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func newPageSession(conn *websocket.Conn, logger zerolog.Logger) *pageSession {
	return &pageSession{
		conn:   conn,
		send:   make(chan ServerFrame, sendQueueDepth),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (p *pageSession) Show(o warning.Overlay) {
	p.enqueue(ServerFrame{
		Type:          FrameShowWarning,
		ID:            o.ID,
		Kind:          string(o.Kind),
		Message:       o.Message,
		AcceptLabel:   o.AcceptLabel,
		AutoDismissMs: o.AutoDismiss.Milliseconds(),
	})
}

func (p *pageSession) Hide(o warning.Overlay, reason warning.DismissReason) {
	p.enqueue(ServerFrame{
		Type:   FrameHideWarning,
		ID:     o.ID,
		Reason: string(reason),
	})
}

func (p *pageSession) enqueue(f ServerFrame) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.send <- f:
	default:
		p.logger.Warn().Str("type", f.Type).Str("overlay_id", f.ID).Msg("Page send queue full, dropping frame")
	}
}

func (p *pageSession) close() {
	p.once.Do(func() { close(p.done) })
}

// writePump owns every write to the connection.
func (p *pageSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case f := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(f); err != nil {
				p.logger.Debug().Err(err).Msg("Page write failed")
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump applies page events to the monitor until the page goes away.
func (p *pageSession) readPump(m *activity.Monitor) {
	p.conn.SetReadLimit(maxFrameSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Debug().Err(err).Msg("Page connection closed unexpectedly")
			}
			return
		}
		p.conn.SetReadDeadline(time.Now().Add(pongWait))

		var f ClientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			p.logger.Debug().Err(err).Msg("Ignoring malformed page frame")
			continue
		}

		switch f.Type {
		case FrameScroll:
			m.Scroll()
		case FrameVisibility:
			m.SetHidden(f.Hidden)
		case FrameDismiss:
			m.Dismiss(f.ID)
		default:
			p.logger.Debug().Str("type", f.Type).Msg("Ignoring unknown page frame")
		}
	}
}

func (s *Server) handlePageSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	tabID, err := strconv.Atoi(query.Get("tab_id"))
	if err != nil || tabID < 0 {
		writeError(w, http.StatusBadRequest, "Invalid tab_id")
		return
	}
	url := query.Get("url")
	if !s.deps.Matcher.Tracked(url) {
		writeError(w, http.StatusForbidden, "URL is not on a tracked domain")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Debug().Err(err).Msg("Page upgrade failed")
		return
	}

	s.deps.Tabs.Update(tabID, url)

	logger := s.logger.With().Int("tab_id", tabID).Logger()
	session := newPageSession(conn, logger)

	m, err := s.deps.Pages.Open(tabID, url, session)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to open page")
		conn.Close()
		return
	}

	go session.writePump()
	session.readPump(m)

	s.deps.Pages.Close(m.Page().ID)
	session.close()
}
