// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/middleware"
)

func TestDefaultChiMiddlewareConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultChiMiddlewareConfig()
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want empty", cfg.CORSAllowedOrigins)
	}
	if cfg.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", cfg.CORSMaxAge)
	}
	if cfg.RateLimitDisabled {
		t.Error("rate limiting disabled by default")
	}
}

func TestChiMiddlewareConfigFromServer(t *testing.T) {
	t.Parallel()

	mc := ChiMiddlewareConfigFromServer(&config.ServerConfig{
		CORSOrigins:       []string{"https://ops.example.com"},
		RateLimitRequests: 7,
		RateLimitWindow:   30 * time.Second,
		RateLimitDisabled: true,
	})
	if len(mc.CORSAllowedOrigins) != 1 || mc.RateLimitRequests != 7 ||
		mc.RateLimitWindow != 30*time.Second || !mc.RateLimitDisabled {
		t.Errorf("config = %+v", mc)
	}
	if mc.CORSMaxAge != 86400 {
		t.Errorf("defaults not kept: CORSMaxAge = %d", mc.CORSMaxAge)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mc := DefaultChiMiddlewareConfig()
	mc.RateLimitRequests = 2
	mc.RateLimitWindow = time.Hour
	router := NewRouter(NewHandler(HandlerDeps{
		Backups:   &mockBackupService{},
		Restorer:  &mockRestorer{},
		Scheduler: &mockScheduler{},
	}), NewChiMiddleware(mc)).SetupChi()

	for i := 0; i < 2; i++ {
		rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/scheduler")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/scheduler")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "RATE_LIMITED" {
		t.Errorf("error = %+v", resp.Error)
	}

	// Health sits outside the limited group.
	if rec, _ := doRequest(t, router, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()

	mc := DefaultChiMiddlewareConfig()
	mc.RateLimitRequests = 1
	mc.RateLimitDisabled = true
	m := NewChiMiddleware(mc)

	calls := 0
	h := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		origin     string
		wantHeader string
	}{
		{"allowed origin", "https://ops.example.com", "https://ops.example.com"},
		{"unknown origin", "https://evil.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mc := DefaultChiMiddlewareConfig()
			mc.CORSAllowedOrigins = []string{"https://ops.example.com"}
			mc.RateLimitDisabled = true
			router := NewRouter(NewHandler(HandlerDeps{
				Backups:   &mockBackupService{},
				Restorer:  &mockRestorer{},
				Scheduler: &mockScheduler{},
			}), NewChiMiddleware(mc)).SetupChi()

			req := httptest.NewRequest(http.MethodOptions, "/api/v1/scheduler/sweep", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestRouterCommonHeaders(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scheduler", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get(middleware.RequestIDHeader); got != "req-123" {
		t.Errorf("request id header = %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestRouterFallbacks(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDeps())

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/nothing-here")
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("not found: %d %+v", rec.Code, resp.Error)
	}
	rec, resp = doRequest(t, router, http.MethodDelete, "/api/v1/scheduler")
	if rec.Code != http.StatusMethodNotAllowed || resp.Error == nil || resp.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("method not allowed: %d %+v", rec.Code, resp.Error)
	}
}

func TestMetadataCarriesRequestID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDeps())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-meta")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Metadata.RequestID != "req-meta" {
		t.Errorf("metadata.request_id = %q", resp.Metadata.RequestID)
	}
}
