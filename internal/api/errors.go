// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/tenantvault/internal/backup"
	"github.com/tomtom215/tenantvault/internal/objstore"
)

// Error codes returned in the envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotConfigured      = "NOT_CONFIGURED"
	CodeUploadFailed       = "UPLOAD_FAILED"
	CodeArchiveNotFound    = "ARCHIVE_NOT_FOUND"
	CodeArchiveFileMissing = "ARCHIVE_FILE_MISSING"
	CodeCorruptArchive     = "CORRUPT_ARCHIVE"
	CodePartialRestore     = "PARTIAL_RESTORE"
	CodeLeaseHeld          = "LEASE_HELD"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeCanceled           = "REQUEST_CANCELED"
	CodeInternal           = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is the de facto status for requests the client
// abandoned.
const StatusClientClosedRequest = 499

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{backup.ErrInvalidTenantID, http.StatusBadRequest, CodeValidation},
	{backup.ErrNotConfigured, http.StatusConflict, CodeNotConfigured},
	{backup.ErrArchiveNotFound, http.StatusNotFound, CodeArchiveNotFound},
	{backup.ErrArchiveFileMissing, http.StatusConflict, CodeArchiveFileMissing},
	{backup.ErrCorruptArchive, http.StatusUnprocessableEntity, CodeCorruptArchive},
	{backup.ErrPartialRestore, http.StatusMultiStatus, CodePartialRestore},
	{backup.ErrLeaseHeld, http.StatusConflict, CodeLeaseHeld},
	{objstore.ErrUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable},
	{backup.ErrUploadFailed, http.StatusBadGateway, CodeUploadFailed},
	{context.Canceled, StatusClientClosedRequest, CodeCanceled},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeCanceled},
}

// classifyError maps a backup error to an HTTP status and error code.
func classifyError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// respondBackupError writes err with its mapped status. Messages of 5xx
// errors are generic; the detail is only logged.
func respondBackupError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	respondError(w, r, status, code, message, err)
}
