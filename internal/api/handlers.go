// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/tenantvault/internal/backup"
	"github.com/tomtom215/tenantvault/internal/validation"
)

// BackupService is the subset of *backup.Service the handlers use.
type BackupService interface {
	CreateBackup(ctx context.Context, tenantID string) (*backup.BackupResult, error)
	ListArchives(ctx context.Context, tenantID string) ([]backup.ArchiveMetadata, error)
	GetArchive(ctx context.Context, tenantID, archiveID string) (*backup.ArchiveMetadata, error)
	EnforceRetention(ctx context.Context, tenantID string) (*backup.RetentionResult, error)
}

// RestoreService is implemented by *backup.Restorer.
type RestoreService interface {
	Restore(ctx context.Context, tenantID, archiveID string) (*backup.RestoreResult, error)
}

// SchedulerService is the subset of *backup.Scheduler the handlers use.
type SchedulerService interface {
	IsBackupDue(ctx context.Context, tenantID string) (bool, error)
	Status() backup.SchedulerStatus
	RunDueBackups(ctx context.Context) (*backup.SweepReport, error)
}

// StorageState reports the storage circuit breaker state for health checks.
type StorageState interface {
	State() string
}

// Handler serves the control plane endpoints.
type Handler struct {
	backups   BackupService
	restorer  RestoreService
	scheduler SchedulerService
	storage   StorageState
	version   string
	startTime time.Time
}

// HandlerDeps bundles the collaborators of a Handler. Storage may be nil.
type HandlerDeps struct {
	Backups   BackupService
	Restorer  RestoreService
	Scheduler SchedulerService
	Storage   StorageState
	Version   string
}

// NewHandler creates a Handler.
func NewHandler(deps HandlerDeps) *Handler {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		backups:   deps.Backups,
		restorer:  deps.Restorer,
		scheduler: deps.Scheduler,
		storage:   deps.Storage,
		version:   version,
		startTime: time.Now(),
	}
}

// validateRequest validates req and writes a 400 response on failure. It
// returns false when the handler should stop.
func validateRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	verr := validation.ValidateStruct(req)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	respondJSON(w, http.StatusBadRequest, &APIResponse{
		Status:   StatusError,
		Metadata: newMetadata(r, time.Time{}),
		Error: &APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
	return false
}
