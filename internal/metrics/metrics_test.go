package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestServer_ExposesMetrics(t *testing.T) {
	EventsTotal.WithLabelValues("scroll").Inc()

	srv := NewServer("127.0.0.1:0", zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "refocus_events_total") {
		t.Error("expected refocus_events_total in metrics output")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestCounterValueGauge(t *testing.T) {
	CounterValue.WithLabelValues("scrollCount").Set(42)
	if got := testutil.ToFloat64(CounterValue.WithLabelValues("scrollCount")); got != 42 {
		t.Errorf("expected gauge 42, got %v", got)
	}
}
