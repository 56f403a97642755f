// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tenantvault/internal/backup"
	"github.com/tomtom215/tenantvault/internal/logging"
)

type tenantPath struct {
	TenantID string `validate:"required,tenantid"`
}

type archivePath struct {
	TenantID  string `validate:"required,tenantid"`
	ArchiveID string `validate:"required,archiveid"`
}

// ArchiveList is the body of GET /tenants/{tenantID}/backups.
type ArchiveList struct {
	TenantID string                   `json:"tenantId"`
	Archives []backup.ArchiveMetadata `json:"archives"`
}

// DueStatus is the body of GET /tenants/{tenantID}/backups/due.
type DueStatus struct {
	TenantID string `json:"tenantId"`
	Due      bool   `json:"due"`
}

func parseTenantPath(w http.ResponseWriter, r *http.Request) (tenantPath, bool) {
	p := tenantPath{TenantID: chi.URLParam(r, "tenantID")}
	return p, validateRequest(w, r, &p)
}

func parseArchivePath(w http.ResponseWriter, r *http.Request) (archivePath, bool) {
	p := archivePath{
		TenantID:  chi.URLParam(r, "tenantID"),
		ArchiveID: chi.URLParam(r, "archiveID"),
	}
	return p, validateRequest(w, r, &p)
}

// CreateBackup runs one backup for the tenant and returns the result.
// Retention runs inside the backup, so the response includes it.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, ok := parseTenantPath(w, r)
	if !ok {
		return
	}

	ctx := logging.ContextWithTenant(r.Context(), p.TenantID)
	result, err := h.backups.CreateBackup(ctx, p.TenantID)
	if err != nil {
		respondBackupError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusCreated, result, start)
}

// ListArchives returns the tenant's completed archives, newest first.
func (h *Handler) ListArchives(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, ok := parseTenantPath(w, r)
	if !ok {
		return
	}

	archives, err := h.backups.ListArchives(r.Context(), p.TenantID)
	if err != nil {
		respondBackupError(w, r, err)
		return
	}
	if archives == nil {
		archives = []backup.ArchiveMetadata{}
	}
	respondSuccess(w, r, http.StatusOK, ArchiveList{TenantID: p.TenantID, Archives: archives}, start)
}

// GetArchive returns one archive's metadata.
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, ok := parseArchivePath(w, r)
	if !ok {
		return
	}

	meta, err := h.backups.GetArchive(r.Context(), p.TenantID, p.ArchiveID)
	if err != nil {
		respondBackupError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, meta, start)
}

// BackupDue reports whether the scheduler would back the tenant up now.
func (h *Handler) BackupDue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, ok := parseTenantPath(w, r)
	if !ok {
		return
	}

	due, err := h.scheduler.IsBackupDue(r.Context(), p.TenantID)
	if err != nil {
		respondBackupError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, DueStatus{TenantID: p.TenantID, Due: due}, start)
}

// RestoreArchive replaces the tenant's data with the archive's contents.
//
// A partial restore answers 207 Multi-Status: data holds the restore result
// and error names the failure.
func (h *Handler) RestoreArchive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, ok := parseArchivePath(w, r)
	if !ok {
		return
	}

	ctx := logging.ContextWithTenant(r.Context(), p.TenantID)
	result, err := h.restorer.Restore(ctx, p.TenantID, p.ArchiveID)
	switch {
	case err == nil:
		respondSuccess(w, r, http.StatusOK, result, start)
	case errors.Is(err, backup.ErrPartialRestore) && result != nil:
		logging.Ctx(ctx).Warn().Err(err).
			Strs("collections_failed", result.CollectionsFailed).
			Msg("Restore finished partially")
		respondJSON(w, http.StatusMultiStatus, &APIResponse{
			Status:   StatusError,
			Data:     result,
			Metadata: newMetadata(r, start),
			Error: &APIError{
				Code:    CodePartialRestore,
				Message: err.Error(),
				Details: map[string]interface{}{"collections_failed": result.CollectionsFailed},
			},
		})
	default:
		respondBackupError(w, r, err)
	}
}

// EnforceRetention prunes the tenant's archives down to the retention count.
func (h *Handler) EnforceRetention(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, ok := parseTenantPath(w, r)
	if !ok {
		return
	}

	result, err := h.backups.EnforceRetention(r.Context(), p.TenantID)
	if err != nil {
		respondBackupError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, result, start)
}
