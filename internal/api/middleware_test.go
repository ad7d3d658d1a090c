package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		if !limiter.Allow("client") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("client") {
		t.Error("Fourth request in window should be rejected")
	}
	if !limiter.Allow("other") {
		t.Error("Limits should be per client")
	}
}

func TestRateLimitMiddleware_KeysOnHost(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()

	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	// Same host, different source port.
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "127.0.0.1:50001"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	const origin = "chrome-extension://abcdefghijklmnop"

	called := false
	handler := CORSMiddleware([]string{origin})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantHeader string
		wantStatus int
		wantNext   bool
	}{
		{"allowed origin", http.MethodGet, origin, origin, http.StatusOK, true},
		{"foreign origin", http.MethodGet, "https://evil.example", "", http.StatusForbidden, false},
		{"no origin", http.MethodGet, "", "", http.StatusOK, true},
		{"preflight", http.MethodOptions, origin, origin, http.StatusNoContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(tt.method, "/api/v1/stats", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("Next handler called = %v, want %v", called, tt.wantNext)
			}
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard", []string{"*"}, "https://example.com", true},
		{"listed", []string{"chrome-extension://abc"}, "chrome-extension://abc", true},
		{"unlisted extension", []string{"chrome-extension://abc"}, "chrome-extension://xyz", false},
		{"default chrome extension", nil, "chrome-extension://abc", true},
		{"default firefox extension", nil, "moz-extension://abc", true},
		{"default website", nil, "https://evil.example", false},
		{"default loopback page", nil, "http://127.0.0.1:8000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := originAllowed(tt.allowed, tt.origin); got != tt.want {
				t.Errorf("originAllowed(%v, %q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}
