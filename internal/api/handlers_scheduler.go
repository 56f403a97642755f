// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/tenantvault/internal/logging"
)

// SchedulerStatus returns the scheduler snapshot.
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.scheduler.Status(), time.Now())
}

// RunSweep runs one sweep synchronously. Per-tenant failures are part of the
// report, so the response is 200 whenever the sweep itself ran.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	report, err := h.scheduler.RunDueBackups(r.Context())
	if report == nil {
		respondBackupError(w, r, err)
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).
			Int("failed", len(report.Failed)).
			Msg("Manual sweep finished with failures")
	}
	respondSuccess(w, r, http.StatusOK, report, start)
}
