// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/objstore"
)

// EnforceRetention keeps the newest RetentionCount completed archives and
// removes the rest. See enforceRetention.
func (s *Service) EnforceRetention(ctx context.Context, tenantID string) (*RetentionResult, error) {
	if err := checkTenantID(tenantID); err != nil {
		return nil, err
	}
	client, err := s.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.enforceRetention(ctx, tenantID, client)
}

// enforceRetention deletes each stale archive's blob and then its metadata
// row. If the row delete fails the archive is still beyond the cutoff and is
// picked up again by the next pass. Per-archive failures are logged and
// joined into the returned error; the remaining archives are still processed.
func (s *Service) enforceRetention(ctx context.Context, tenantID string, client objstore.Client) (*RetentionResult, error) {
	all, err := s.meta.Completed(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	keep := s.cfg.RetentionCount
	result := &RetentionResult{TenantID: tenantID, Kept: min(keep, len(all)), Deleted: []string{}}
	if len(all) <= keep {
		return result, nil
	}

	log := logging.Ctx(ctx).With().Str("tenant_id", tenantID).Logger()
	var errs []error
	for i := range all[keep:] {
		m := &all[keep+i]
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := s.deleteArchive(ctx, client, m)
		metrics.RecordRetentionDeletion(err)
		if err != nil {
			log.Warn().Err(err).Str("archive_id", m.ArchiveID).Msg("Failed to prune archive")
			result.Failed = append(result.Failed, m.ArchiveID)
			errs = append(errs, err)
			continue
		}
		result.Deleted = append(result.Deleted, m.ArchiveID)
	}

	if len(result.Deleted) > 0 {
		log.Info().Int("deleted", len(result.Deleted)).Int("kept", result.Kept).Msg("Pruned old archives")
	}
	return result, errors.Join(errs...)
}

// deleteArchive removes the blob first. A blob that is already gone counts
// as deleted.
func (s *Service) deleteArchive(ctx context.Context, client objstore.Client, m *ArchiveMetadata) error {
	ids := []string{m.StorageObjectID}
	if m.StorageObjectID == "" {
		objs, err := client.Find(ctx, objstore.Query{Name: m.StorageObjectName})
		if err != nil {
			return fmt.Errorf("locate blob for %s: %w", m.ArchiveID, err)
		}
		ids = ids[:0]
		for _, o := range objs {
			ids = append(ids, o.ID)
		}
	}

	for _, id := range ids {
		if err := client.Delete(ctx, id); err != nil && !errors.Is(err, objstore.ErrNotFound) {
			return fmt.Errorf("delete blob for %s: %w", m.ArchiveID, err)
		}
	}
	return s.meta.Delete(ctx, m.TenantID, m.ArchiveID)
}
