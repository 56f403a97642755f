// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/tenantvault/internal/metrics"
)

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/tenants/{tenantID}/backups", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/tenants/{tenantID}/backups", "418")
	before := testutil.ToFloat64(counter)

	for _, tenant := range []string{"shop-a", "shop-b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+tenant+"/backups", nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d, want 418", rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests under the route pattern = %v, want 2", got)
	}
}

func TestPrometheusMetrics_Unrouted(t *testing.T) {
	t.Parallel()

	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodPost, unmatchedRoute, "200")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/anything", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected default status 200, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestMetricsResponseWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		writes []int
		want   int
	}{
		{"captures status code", []int{http.StatusNotFound}, http.StatusNotFound},
		{"keeps first status", []int{http.StatusCreated, http.StatusInternalServerError}, http.StatusCreated},
		{"defaults to 200", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			wrapper := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
			for _, code := range tt.writes {
				wrapper.WriteHeader(code)
			}
			if wrapper.statusCode != tt.want {
				t.Errorf("statusCode = %d, want %d", wrapper.statusCode, tt.want)
			}
			if wrapper.Unwrap() != rec {
				t.Error("Unwrap() did not return the underlying writer")
			}
		})
	}
}
