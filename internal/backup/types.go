// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"errors"
	"time"
)

var (
	// ErrNotConfigured means the tenant has no usable storage credential.
	// Callers treat it as a skip, not a failure.
	ErrNotConfigured = errors.New("backup not configured for tenant")

	// ErrUploadFailed means the archive upload exhausted its retries.
	ErrUploadFailed = errors.New("archive upload failed")

	// ErrArchiveNotFound means no completed archive matches the request.
	ErrArchiveNotFound = errors.New("archive not found")

	// ErrArchiveFileMissing means metadata exists but its blob does not.
	ErrArchiveFileMissing = errors.New("archive file missing")

	// ErrCorruptArchive means the blob could not be parsed or failed checks.
	// Nothing has been written when it is returned.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrPartialRestore means at least one collection failed to restore.
	// Collections already restored are not rolled back.
	ErrPartialRestore = errors.New("partial restore")

	// ErrInvalidTenantID rejects tenant ids outside the allowed charset.
	ErrInvalidTenantID = errors.New("invalid tenant id")

	// ErrLeaseHeld means another scheduler instance holds the tenant's claim.
	ErrLeaseHeld = errors.New("backup lease held by another instance")
)

// Bookkeeping collections owned by this package.
const (
	ArchivesCollection   = "backup_archives"
	RestoreLogCollection = "backup_restore_log"
	LeasesCollection     = "backup_leases"
)

// ArchiveStatus is the state of an ArchiveMetadata row.
type ArchiveStatus string

const (
	// StatusCompleted marks an uploaded archive. Only completed rows are used
	// for due-ness, retention and restore.
	StatusCompleted ArchiveStatus = "completed"

	// StatusFailed records an upload that gave up. Observational only.
	StatusFailed ArchiveStatus = "failed"
)

// RestoreStatus is the outcome recorded in the restore log.
type RestoreStatus string

const (
	RestoreCompleted RestoreStatus = "completed"
	RestorePartial   RestoreStatus = "partial"
)

// ArchiveMetadata indexes one archive. It is stored in ArchivesCollection
// with _id equal to ArchiveID.
type ArchiveMetadata struct {
	TenantID          string        `json:"tenantId"`
	ArchiveID         string        `json:"archiveId"`
	StorageObjectName string        `json:"storageObjectName"`
	StorageObjectID   string        `json:"storageObjectId,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	TotalRecordCount  int           `json:"totalRecordCount"`
	CollectionNames   []string      `json:"collectionNames"`
	SizeBytes         int64         `json:"sizeBytes"`
	Status            ArchiveStatus `json:"status"`
	Error             string        `json:"error,omitempty"`
}

// RestoreLogEntry is one line of the append-only restore audit trail.
type RestoreLogEntry struct {
	ID                  string        `json:"_id"`
	TenantID            string        `json:"tenantId"`
	ArchiveID           string        `json:"archiveId"`
	RestoredAt          time.Time     `json:"restoredAt"`
	RestoredRecordCount int           `json:"restoredRecordCount"`
	CollectionsRestored []string      `json:"collectionsRestored"`
	Status              RestoreStatus `json:"status"`
	Error               string        `json:"error,omitempty"`
}

// BackupResult describes a successful CreateBackup.
type BackupResult struct {
	TenantID         string           `json:"tenantId"`
	ArchiveID        string           `json:"archiveId"`
	ObjectName       string           `json:"objectName"`
	CreatedAt        time.Time        `json:"createdAt"`
	TotalRecordCount int              `json:"totalRecordCount"`
	SizeBytes        int64            `json:"sizeBytes"`
	Attempts         int              `json:"attempts"`
	Retention        *RetentionResult `json:"retention,omitempty"`
}

// RetentionResult describes one retention pass.
type RetentionResult struct {
	TenantID string   `json:"tenantId"`
	Kept     int      `json:"kept"`
	Deleted  []string `json:"deleted"`
	Failed   []string `json:"failed,omitempty"`
}

// RestoreResult describes a restore. It is returned alongside
// ErrPartialRestore as well as on success.
type RestoreResult struct {
	TenantID            string        `json:"tenantId"`
	ArchiveID           string        `json:"archiveId"`
	RestoredRecordCount int           `json:"restoredRecordCount"`
	CollectionsRestored []string      `json:"collectionsRestored"`
	CollectionsFailed   []string      `json:"collectionsFailed,omitempty"`
	Status              RestoreStatus `json:"status"`
}

// TenantFailure is one failed tenant in a sweep.
type TenantFailure struct {
	TenantID string `json:"tenantId"`
	Error    string `json:"error"`
}

// SweepReport summarizes one RunDueBackups call.
type SweepReport struct {
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Checked    int             `json:"checked"`
	BackedUp   []string        `json:"backedUp"`
	NotDue     []string        `json:"notDue"`
	Skipped    []string        `json:"skipped"`
	Failed     []TenantFailure `json:"failed"`
	// Interrupted is set when Stop ended the sweep before every tenant was
	// visited.
	Interrupted bool `json:"interrupted"`
}

// SchedulerStatus is a snapshot of the scheduler state.
type SchedulerStatus struct {
	Running         bool      `json:"running"`
	HasActiveTimer  bool      `json:"hasActiveTimer"`
	PendingRetries  []string  `json:"pendingRetries"`
	LastSweepAt     time.Time `json:"lastSweepAt"`
	LastSweepErrors int       `json:"lastSweepErrors"`
}
