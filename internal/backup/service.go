// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"

	"github.com/tomtom215/tenantvault/internal/credentials"
	"github.com/tomtom215/tenantvault/internal/docstore"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/objstore"
	"github.com/tomtom215/tenantvault/internal/validation"
)

// DefaultObjectPrefix starts every archive object name.
const DefaultObjectPrefix = "tenantvault"

// DefaultRetentionCount is how many completed archives a tenant keeps.
const DefaultRetentionCount = 5

// StorageProvider returns an object-storage client for a credential.
// *objstore.Provider implements it.
type StorageProvider interface {
	Client(ctx context.Context, cred *credentials.Credential) (objstore.Client, error)
}

// ServiceConfig configures NewService. Zero values select defaults.
type ServiceConfig struct {
	Collections    CollectionSpec
	ObjectPrefix   string
	Compression    Compression
	RetentionCount int
	Upload         RetryPolicy
	// RecordFailures writes a failed metadata row when an upload gives up.
	RecordFailures bool
	Clock          clock.Clock
}

// Service creates archives and enforces retention.
type Service struct {
	store   docstore.Store
	creds   credentials.Store
	storage StorageProvider
	meta    *MetadataStore
	cfg     ServiceConfig
	clock   clock.Clock
	ids     *idSource
}

// NewService validates cfg and returns a Service.
func NewService(store docstore.Store, creds credentials.Store, storage StorageProvider, cfg ServiceConfig) (*Service, error) {
	if len(cfg.Collections.Collections) == 0 {
		cfg.Collections = DefaultCollectionSpec()
	}
	if err := cfg.Collections.Validate(); err != nil {
		return nil, err
	}
	if cfg.ObjectPrefix == "" {
		cfg.ObjectPrefix = DefaultObjectPrefix
	}
	if !validation.IsTenantID(cfg.ObjectPrefix) {
		return nil, fmt.Errorf("invalid object prefix %q", cfg.ObjectPrefix)
	}
	switch cfg.Compression {
	case "":
		cfg.Compression = CompressionZstd
	case CompressionZstd, CompressionNone:
	default:
		return nil, fmt.Errorf("unknown compression %q", cfg.Compression)
	}
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	if cfg.Upload.MaxAttempts == 0 {
		cfg.Upload = DefaultUploadPolicy()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	return &Service{
		store:   store,
		creds:   creds,
		storage: storage,
		meta:    NewMetadataStore(store),
		cfg:     cfg,
		clock:   cfg.Clock,
		ids:     newIDSource(),
	}, nil
}

// Metadata returns the archive index.
func (s *Service) Metadata() *MetadataStore {
	return s.meta
}

// Collections returns the allow-list in use.
func (s *Service) Collections() CollectionSpec {
	return s.cfg.Collections
}

// Clock returns the service clock.
func (s *Service) Clock() clock.Clock {
	return s.clock
}

func checkTenantID(tenantID string) error {
	if !validation.IsTenantID(tenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return nil
}

// clientFor resolves the tenant credential and builds a storage client.
// A missing or expired credential is ErrNotConfigured.
func (s *Service) clientFor(ctx context.Context, tenantID string) (objstore.Client, error) {
	cred, err := s.creds.Get(ctx, tenantID)
	if errors.Is(err, credentials.ErrNotFound) {
		return nil, fmt.Errorf("%w: no storage credential for %s", ErrNotConfigured, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve credential for %s: %w", tenantID, err)
	}
	if !cred.Usable(s.clock.Now()) {
		return nil, fmt.Errorf("%w: storage credential for %s expired", ErrNotConfigured, tenantID)
	}
	return s.storage.Client(ctx, cred)
}

// CreateBackup snapshots the tenant's allow-listed collections, uploads the
// archive, records it and prunes old archives. Retention problems are logged
// and reported in the result; they do not fail the backup.
func (s *Service) CreateBackup(ctx context.Context, tenantID string) (*BackupResult, error) {
	if err := checkTenantID(tenantID); err != nil {
		return nil, err
	}
	start := s.clock.Now()
	log := logging.Ctx(ctx).With().Str("tenant_id", tenantID).Logger()

	client, err := s.clientFor(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			metrics.RecordBackup(metrics.OutcomeNotConfigured, s.clock.Now().Sub(start), 0, 0)
			log.Debug().Err(err).Msg("Skipping backup, tenant not configured")
		}
		return nil, err
	}

	createdAt := s.clock.Now().UTC()
	archiveID := s.ids.next(createdAt)
	log = log.With().Str("archive_id", archiveID).Logger()

	archive, err := s.snapshot(ctx, tenantID, archiveID, createdAt)
	if err != nil {
		metrics.RecordBackup(metrics.OutcomeFailed, s.clock.Now().Sub(start), 0, 0)
		return nil, err
	}
	data, err := Serialize(archive, s.cfg.Compression)
	if err != nil {
		metrics.RecordBackup(metrics.OutcomeFailed, s.clock.Now().Sub(start), 0, 0)
		return nil, err
	}

	name := ObjectName(s.cfg.ObjectPrefix, tenantID, archiveID, s.cfg.Compression)
	meta := &ArchiveMetadata{
		TenantID:          tenantID,
		ArchiveID:         archiveID,
		StorageObjectName: name,
		CreatedAt:         createdAt,
		TotalRecordCount:  archive.Metadata.TotalDocuments,
		CollectionNames:   archive.Metadata.Collections,
		SizeBytes:         int64(len(data)),
	}

	obj, attempts, err := s.upload(ctx, client, name, data)
	if err != nil {
		metrics.RecordBackup(metrics.OutcomeFailed, s.clock.Now().Sub(start), 0, 0)
		log.Error().Err(err).Int("attempts", attempts).Str("object_name", name).Msg("Archive upload failed")
		if s.cfg.RecordFailures {
			meta.Status = StatusFailed
			meta.Error = err.Error()
			if putErr := s.meta.Put(context.WithoutCancel(ctx), meta); putErr != nil {
				log.Warn().Err(putErr).Msg("Failed to record failed backup")
			}
		}
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrUploadFailed, name, attempts, err)
	}

	meta.Status = StatusCompleted
	meta.StorageObjectID = obj.ID
	if err := s.meta.Put(ctx, meta); err != nil {
		// The blob is unreachable without its metadata row.
		if delErr := client.Delete(context.WithoutCancel(ctx), obj.ID); delErr != nil {
			log.Warn().Err(delErr).Str("object_name", name).Msg("Failed to remove unrecorded archive")
		}
		metrics.RecordBackup(metrics.OutcomeFailed, s.clock.Now().Sub(start), 0, 0)
		return nil, err
	}

	result := &BackupResult{
		TenantID:         tenantID,
		ArchiveID:        archiveID,
		ObjectName:       name,
		CreatedAt:        createdAt,
		TotalRecordCount: meta.TotalRecordCount,
		SizeBytes:        meta.SizeBytes,
		Attempts:         attempts,
	}

	retention, err := s.enforceRetention(ctx, tenantID, client)
	if err != nil {
		log.Warn().Err(err).Msg("Retention pass incomplete")
	}
	result.Retention = retention

	duration := s.clock.Now().Sub(start)
	metrics.RecordBackup(metrics.OutcomeCompleted, duration, meta.TotalRecordCount, len(data))
	log.Info().
		Str("object_name", name).
		Int("documents", meta.TotalRecordCount).
		Int64("size_bytes", meta.SizeBytes).
		Int("attempts", attempts).
		Dur("duration", duration).
		Msg("Backup completed")
	return result, nil
}

// snapshot reads every allow-listed collection for the tenant. Empty
// collections are kept as empty lists so a restore clears them too.
func (s *Service) snapshot(ctx context.Context, tenantID, archiveID string, createdAt time.Time) (*Archive, error) {
	a := &Archive{
		Metadata: ArchiveHeader{
			ArchiveID:     archiveID,
			TenantID:      tenantID,
			CreatedAt:     createdAt,
			Collections:   s.cfg.Collections.Names(),
			FormatVersion: FormatVersion,
		},
		Collections: make(map[string][]docstore.Document, len(s.cfg.Collections.Collections)),
	}
	for _, c := range s.cfg.Collections.Collections {
		docs, err := s.store.Find(ctx, c.Name, c.Filter(tenantID))
		if err != nil {
			return nil, fmt.Errorf("snapshot %s for %s: %w", c.Name, tenantID, err)
		}
		if docs == nil {
			docs = []docstore.Document{}
		}
		a.Collections[c.Name] = docs
	}
	a.Metadata.TotalDocuments = a.CountDocuments()
	return a, nil
}

func (s *Service) upload(ctx context.Context, client objstore.Client, name string, data []byte) (objstore.Object, int, error) {
	var obj objstore.Object
	attempts, err := s.cfg.Upload.Do(ctx, s.clock, func(ctx context.Context, attempt int) error {
		var err error
		obj, err = client.Upload(ctx, name, data, contentType(s.cfg.Compression))
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("object_name", name).Int("attempt", attempt).Msg("Archive upload attempt failed")
			metrics.UploadAttempts.WithLabelValues("retry").Inc()
			return err
		}
		metrics.UploadAttempts.WithLabelValues("success").Inc()
		return nil
	}, nil)
	if err != nil {
		metrics.UploadAttempts.WithLabelValues("exhausted").Inc()
	}
	return obj, attempts, err
}

// ListArchives returns the tenant's completed archives, newest first.
func (s *Service) ListArchives(ctx context.Context, tenantID string) ([]ArchiveMetadata, error) {
	if err := checkTenantID(tenantID); err != nil {
		return nil, err
	}
	return s.meta.Completed(ctx, tenantID)
}

// GetArchive returns one completed archive or ErrArchiveNotFound.
func (s *Service) GetArchive(ctx context.Context, tenantID, archiveID string) (*ArchiveMetadata, error) {
	if err := checkTenantID(tenantID); err != nil {
		return nil, err
	}
	return s.meta.Get(ctx, tenantID, archiveID)
}
