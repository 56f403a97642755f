// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/tenantvault/internal/backup"
)

func TestSchedulerStatus(t *testing.T) {
	t.Parallel()

	d := newTestDeps()
	d.scheduler.statusFunc = func() backup.SchedulerStatus {
		return backup.SchedulerStatus{Running: true, HasActiveTimer: true, PendingRetries: []string{"tenant_b"}}
	}
	rec, resp := doRequest(t, newTestRouter(t, d), http.MethodGet, "/api/v1/scheduler")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got backup.SchedulerStatus
	decodeData(t, resp, &got)
	if !got.Running || !got.HasActiveTimer || len(got.PendingRetries) != 1 {
		t.Errorf("data = %+v", got)
	}
}

func TestRunSweep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		report     *backup.SweepReport
		err        error
		wantStatus int
	}{
		{"clean", &backup.SweepReport{Checked: 2, BackedUp: []string{"tenant_a"}, NotDue: []string{"tenant_c"}}, nil, http.StatusOK},
		{
			name:       "tenant failures still report",
			report:     &backup.SweepReport{Checked: 1, Failed: []backup.TenantFailure{{TenantID: "tenant_b", Error: "unauthorized"}}},
			err:        errors.New("tenant_b: unauthorized"),
			wantStatus: http.StatusOK,
		},
		{"listing failed", nil, errors.New("credentials db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := newTestDeps()
			d.scheduler.runDueBackupsFunc = func(context.Context) (*backup.SweepReport, error) {
				return tt.report, tt.err
			}
			rec, resp := doRequest(t, newTestRouter(t, d), http.MethodPost, "/api/v1/scheduler/sweep")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.report == nil {
				return
			}
			var got backup.SweepReport
			decodeData(t, resp, &got)
			if got.Checked != tt.report.Checked || len(got.Failed) != len(tt.report.Failed) {
				t.Errorf("data = %+v", got)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		breaker    string
		wantStatus string
	}{
		{"closed breaker", "closed", "healthy"},
		{"half-open breaker", "half-open", "healthy"},
		{"open breaker", "open", "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := newTestDeps()
			d.storage = stateFunc(func() string { return tt.breaker })
			sweptAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			d.scheduler.statusFunc = func() backup.SchedulerStatus {
				return backup.SchedulerStatus{Running: true, LastSweepAt: sweptAt}
			}

			rec, resp := doRequest(t, newTestRouter(t, d), http.MethodGet, "/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var got HealthStatus
			decodeData(t, resp, &got)
			if got.Status != tt.wantStatus || got.StorageBreaker != tt.breaker {
				t.Errorf("health = %+v, want status %s", got, tt.wantStatus)
			}
			if !got.SchedulerRunning || !got.LastSweepAt.Equal(sweptAt) || got.Version != "test" {
				t.Errorf("health = %+v", got)
			}
		})
	}
}
