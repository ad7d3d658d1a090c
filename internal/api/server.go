// Package api exposes the monitors to the browser extension over HTTP and
// WebSocket.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/activity"
	"github.com/goodtune/refocus/internal/domains"
	"github.com/goodtune/refocus/internal/stats"
	"github.com/goodtune/refocus/internal/storage"
	"github.com/goodtune/refocus/internal/switches"
	"github.com/goodtune/refocus/internal/tabs"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr      string
	RateLimit       int
	RateLimitWindow time.Duration
	AllowedOrigins  []string
}

// Deps holds the components served by the API.
type Deps struct {
	Counters   storage.CounterStore
	History    storage.WarningStore
	Switches   *switches.Monitor
	Tabs       *tabs.Registry
	Pages      *activity.Registry
	Matcher    *domains.Matcher
	Thresholds stats.Thresholds
}

// Server is the extension-facing HTTP server.
type Server struct {
	config      Config
	deps        Deps
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	router      *mux.Router
	server      *http.Server
	listener    net.Listener // Optional pre-created listener (for systemd socket activation)
	logger      zerolog.Logger
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 600
	}
	rateLimitWindow := cfg.RateLimitWindow
	if rateLimitWindow == 0 {
		rateLimitWindow = time.Minute
	}

	s := &Server{
		config:      cfg,
		deps:        deps,
		rateLimiter: NewRateLimiter(rateLimit, rateLimitWindow),
		router:      mux.NewRouter(),
		logger:      logger.With().Str("component", "api").Logger(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(s.rateLimiter))

	s.router.Use(CORSMiddleware(s.config.AllowedOrigins))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Popup
	v1.HandleFunc("/stats", s.handleStats).Methods("GET")
	v1.HandleFunc("/counters", s.handleCounters).Methods("GET")

	// Background shim
	v1.HandleFunc("/tabs/activated", s.handleTabActivated).Methods("POST", "OPTIONS")
	v1.HandleFunc("/tabs/{id:[0-9]+}", s.handleTabUpdate).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/tabs/{id:[0-9]+}", s.handleTabRemove).Methods("DELETE")

	// Content shim
	v1.HandleFunc("/pages/ws", s.handlePageSocket).Methods("GET")
	v1.HandleFunc("/pages", s.handlePages).Methods("GET")

	// History
	v1.HandleFunc("/warnings", s.handleWarnings).Methods("GET")
	// Bolt-generated IDs contain a slash.
	v1.HandleFunc("/warnings/{id:.+}", s.handleWarning).Methods("GET")
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server. Open page sessions are hijacked
// connections and are torn down by the caller through the page registry.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")
	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return originAllowed(s.config.AllowedOrigins, origin)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
