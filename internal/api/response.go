// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantvault/internal/logging"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the error section of the envelope.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &APIResponse{
		Status:   StatusSuccess,
		Data:     data,
		Metadata: newMetadata(r, start),
	})
}

// respondError sends an error response. err is logged, never returned to the
// client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		event := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(r.Context()).Error()
		}
		event.Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Msg("API Error")
	}

	respondJSON(w, status, &APIResponse{
		Status:   StatusError,
		Metadata: newMetadata(r, time.Time{}),
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

func newMetadata(r *http.Request, start time.Time) Metadata {
	m := Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
	if !start.IsZero() {
		m.QueryTimeMS = time.Since(start).Milliseconds()
	}
	return m
}
