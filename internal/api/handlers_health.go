// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status           string    `json:"status"`
	Version          string    `json:"version"`
	SchedulerRunning bool      `json:"schedulerRunning"`
	StorageBreaker   string    `json:"storageBreaker,omitempty"`
	LastSweepAt      time.Time `json:"lastSweepAt"`
	Uptime           float64   `json:"uptimeSeconds"`
}

// Health reports process health. The status is degraded while the storage
// breaker is open; the response code stays 200 so probes do not restart a
// process that only waits on its storage provider.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sched := h.scheduler.Status()

	health := HealthStatus{
		Status:           "healthy",
		Version:          h.version,
		SchedulerRunning: sched.Running,
		LastSweepAt:      sched.LastSweepAt,
		Uptime:           time.Since(h.startTime).Seconds(),
	}
	if h.storage != nil {
		health.StorageBreaker = h.storage.State()
		if health.StorageBreaker == "open" {
			health.Status = "degraded"
		}
	}

	respondSuccess(w, r, http.StatusOK, health, time.Time{})
}
