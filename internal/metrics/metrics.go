package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Event metrics
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refocus_events_total",
			Help: "Total browser events received",
		},
		[]string{"source"},
	)

	// Warning metrics
	WarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refocus_warnings_total",
			Help: "Warning triggers by kind and outcome (shown, suppressed)",
		},
		[]string{"kind", "outcome"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refocus_notifications_total",
			Help: "Tab-switch notification attempts by result",
		},
		[]string{"result"},
	)

	// Storage metrics
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refocus_store_errors_total",
			Help: "Shared store operation failures",
		},
		[]string{"op"},
	)

	CounterValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refocus_counter_value",
			Help: "Last value published for each shared counter",
		},
		[]string{"key"},
	)

	// Page metrics
	ActivePages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "refocus_active_pages",
			Help: "Number of connected tracked pages",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		EventsTotal,
		WarningsTotal,
		NotificationsTotal,
		StoreErrors,
		CounterValue,
		ActivePages,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
