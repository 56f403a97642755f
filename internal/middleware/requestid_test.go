// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/tenantvault/internal/logging"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	t.Parallel()

	var capturedID, loggingID, correlationID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
		loggingID = logging.RequestIDFromContext(r.Context())
		correlationID = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	responseID := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("Response X-Request-ID is not a valid UUID: %v", err)
	}
	if capturedID != responseID {
		t.Errorf("Context ID (%s) doesn't match response header ID (%s)", capturedID, responseID)
	}
	if loggingID != responseID {
		t.Errorf("logging request ID = %q, want %q", loggingID, responseID)
	}
	if correlationID == "" {
		t.Error("Expected correlation ID in context")
	}
}

func TestRequestID_PreservesExistingID(t *testing.T) {
	t.Parallel()

	var capturedID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
	}))

	existingID := "existing-request-id-12345"
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, existingID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != existingID {
		t.Errorf("Expected X-Request-ID to be %s, got %s", existingID, got)
	}
	if capturedID != existingID {
		t.Errorf("Expected context ID to be %s, got %s", existingID, capturedID)
	}
}

func TestGetRequestID_WithoutID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("Expected empty string when no request ID in context, got: %s", id)
	}
}

func TestRequestID_MultipleRequests(t *testing.T) {
	t.Parallel()

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ids := make(map[string]bool)
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := rec.Header().Get(RequestIDHeader)
		if ids[id] {
			t.Errorf("Duplicate request ID generated: %s", id)
		}
		ids[id] = true
	}
}
