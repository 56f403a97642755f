// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
restore.go - Tenant Restore

Restore replaces a tenant's live data with one archive:

 1. Look up the completed metadata row for (tenant, archive).
 2. Find the blob by its recorded object name.
 3. Download, parse and validate the archive. Nothing is written until the
    whole archive has been checked.
 4. Replace each collection present in the archive. Collections that are
    allow-listed but absent from the archive are left alone.
 5. Append a restore log entry.

Each collection is replaced atomically when the document store supports it.
There is no transaction across collections: a failure part way leaves the
earlier collections restored, and the call reports ErrPartialRestore.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/tenantvault/internal/docstore"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/objstore"
)

// Restorer replays archives into the document store.
type Restorer struct {
	svc *Service
}

// NewRestorer returns a Restorer sharing svc's store, credentials and
// storage provider.
func NewRestorer(svc *Service) *Restorer {
	return &Restorer{svc: svc}
}

// Restore replaces the tenant's allow-listed collections with the contents
// of archiveID. On ErrPartialRestore the result is returned as well.
func (r *Restorer) Restore(ctx context.Context, tenantID, archiveID string) (*RestoreResult, error) {
	if err := checkTenantID(tenantID); err != nil {
		return nil, err
	}
	start := r.svc.clock.Now()
	log := logging.Ctx(ctx).With().Str("tenant_id", tenantID).Str("archive_id", archiveID).Logger()

	archive, err := r.load(ctx, tenantID, archiveID)
	if err != nil {
		metrics.RecordRestore(metrics.OutcomeFailed, r.svc.clock.Now().Sub(start), 0)
		log.Warn().Err(err).Msg("Restore aborted before writing")
		return nil, err
	}

	// Past this point the tenant's data is being rewritten; a canceled
	// request must not stop half way through a collection list.
	result := r.apply(context.WithoutCancel(ctx), tenantID, archive)

	entry := &RestoreLogEntry{
		ID:                  r.svc.ids.next(r.svc.clock.Now()),
		TenantID:            tenantID,
		ArchiveID:           archiveID,
		RestoredAt:          r.svc.clock.Now().UTC(),
		RestoredRecordCount: result.RestoredRecordCount,
		CollectionsRestored: result.CollectionsRestored,
		Status:              result.Status,
	}
	if len(result.CollectionsFailed) > 0 {
		entry.Error = "failed collections: " + strings.Join(result.CollectionsFailed, ", ")
	}
	if err := r.svc.meta.AppendRestoreLog(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn().Err(err).Msg("Failed to append restore log")
	}

	duration := r.svc.clock.Now().Sub(start)
	if result.Status == RestorePartial {
		metrics.RecordRestore(metrics.OutcomePartial, duration, result.RestoredRecordCount)
		log.Error().
			Strs("failed", result.CollectionsFailed).
			Int("restored_collections", len(result.CollectionsRestored)).
			Msg("Restore partially applied")
		return result, fmt.Errorf("%w: %d of %d collections restored",
			ErrPartialRestore, len(result.CollectionsRestored), len(result.CollectionsRestored)+len(result.CollectionsFailed))
	}

	metrics.RecordRestore(metrics.OutcomeCompleted, duration, result.RestoredRecordCount)
	log.Info().
		Int("documents", result.RestoredRecordCount).
		Int("collections", len(result.CollectionsRestored)).
		Dur("duration", duration).
		Msg("Restore completed")
	return result, nil
}

// load finds, downloads, parses and validates the archive without touching
// any tenant collection.
func (r *Restorer) load(ctx context.Context, tenantID, archiveID string) (*Archive, error) {
	meta, err := r.svc.meta.Get(ctx, tenantID, archiveID)
	if err != nil {
		return nil, err
	}

	client, err := r.svc.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	objs, err := client.Find(ctx, objstore.Query{Name: meta.StorageObjectName})
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", meta.StorageObjectName, err)
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrArchiveFileMissing, meta.StorageObjectName)
	}
	obj := objs[0]
	for _, o := range objs {
		if o.ID == meta.StorageObjectID {
			obj = o
			break
		}
	}

	data, err := client.Download(ctx, obj.ID)
	if errors.Is(err, objstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrArchiveFileMissing, meta.StorageObjectName)
	}
	if errors.Is(err, objstore.ErrObjectTooLarge) {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArchive, meta.StorageObjectName, err)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", meta.StorageObjectName, err)
	}

	archive, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArchive, meta.StorageObjectName, err)
	}
	if err := r.validate(archive, tenantID, archiveID); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArchive, meta.StorageObjectName, err)
	}
	return archive, nil
}

// validate checks the archive belongs to the tenant and only names
// allow-listed collections.
func (r *Restorer) validate(a *Archive, tenantID, archiveID string) error {
	if a.Metadata.TenantID != tenantID {
		return fmt.Errorf("archive belongs to tenant %q", a.Metadata.TenantID)
	}
	if a.Metadata.ArchiveID != archiveID {
		return fmt.Errorf("archive id is %q", a.Metadata.ArchiveID)
	}

	spec := r.svc.cfg.Collections
	for name, docs := range a.Collections {
		c, ok := spec.Lookup(name)
		if !ok {
			return fmt.Errorf("collection %q is not restorable", name)
		}
		if c.Scope == ScopeIdentity && len(docs) > 1 {
			return fmt.Errorf("collection %q holds %d identity records", name, len(docs))
		}
		seen := make(map[string]bool, len(docs))
		for i, doc := range docs {
			if !c.Owns(doc, tenantID) {
				return fmt.Errorf("collection %q record %d is not owned by the tenant", name, i)
			}
			if id, ok := doc.ID(); ok {
				if seen[id] {
					return fmt.Errorf("collection %q repeats id %q", name, id)
				}
				seen[id] = true
			}
		}
	}

	if got := a.CountDocuments(); got != a.Metadata.TotalDocuments {
		return fmt.Errorf("header counts %d documents, archive holds %d", a.Metadata.TotalDocuments, got)
	}
	return nil
}

// apply replaces collections in allow-list order, continuing past failures.
func (r *Restorer) apply(ctx context.Context, tenantID string, a *Archive) *RestoreResult {
	result := &RestoreResult{
		TenantID:            tenantID,
		ArchiveID:           a.Metadata.ArchiveID,
		CollectionsRestored: []string{},
		Status:              RestoreCompleted,
	}

	for _, c := range r.svc.cfg.Collections.Collections {
		docs, ok := a.Collections[c.Name]
		if !ok {
			continue
		}
		if _, err := docstore.ReplaceMany(ctx, r.svc.store, c.Name, c.Filter(tenantID), docs); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("tenant_id", tenantID).
				Str("collection", c.Name).
				Msg("Failed to restore collection")
			result.CollectionsFailed = append(result.CollectionsFailed, c.Name)
			continue
		}
		result.CollectionsRestored = append(result.CollectionsRestored, c.Name)
		result.RestoredRecordCount += len(docs)
	}

	if len(result.CollectionsFailed) > 0 {
		result.Status = RestorePartial
	}
	return result
}
