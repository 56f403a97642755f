// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantvault/internal/docstore"
)

// MetadataStore keeps ArchiveMetadata rows and restore log entries in the
// document store.
type MetadataStore struct {
	store docstore.Store
}

// NewMetadataStore returns a MetadataStore over store.
func NewMetadataStore(store docstore.Store) *MetadataStore {
	return &MetadataStore{store: store}
}

// Put inserts m. A second completed row for the same archive is rejected by
// the _id key.
func (s *MetadataStore) Put(ctx context.Context, m *ArchiveMetadata) error {
	doc, err := toDocument(m)
	if err != nil {
		return err
	}
	doc[docstore.IDField] = m.ArchiveID
	if err := s.store.InsertMany(ctx, ArchivesCollection, []docstore.Document{doc}); err != nil {
		return fmt.Errorf("record archive %s: %w", m.ArchiveID, err)
	}
	return nil
}

// Completed returns the tenant's completed archives, newest first.
func (s *MetadataStore) Completed(ctx context.Context, tenantID string) ([]ArchiveMetadata, error) {
	docs, err := s.store.Find(ctx, ArchivesCollection, docstore.Filter{
		"tenantId": tenantID,
		"status":   string(StatusCompleted),
	})
	if err != nil {
		return nil, fmt.Errorf("list archives for %s: %w", tenantID, err)
	}

	out := make([]ArchiveMetadata, 0, len(docs))
	for _, doc := range docs {
		var m ArchiveMetadata
		if err := fromDocument(doc, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sortNewestFirst(out)
	return out, nil
}

// Latest returns the tenant's newest completed archive, or nil.
func (s *MetadataStore) Latest(ctx context.Context, tenantID string) (*ArchiveMetadata, error) {
	all, err := s.Completed(ctx, tenantID)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[0], nil
}

// Get returns the completed archive archiveID owned by tenantID, or
// ErrArchiveNotFound.
func (s *MetadataStore) Get(ctx context.Context, tenantID, archiveID string) (*ArchiveMetadata, error) {
	docs, err := s.store.Find(ctx, ArchivesCollection, docstore.Filter{docstore.IDField: archiveID})
	if err != nil {
		return nil, fmt.Errorf("get archive %s: %w", archiveID, err)
	}
	for _, doc := range docs {
		var m ArchiveMetadata
		if err := fromDocument(doc, &m); err != nil {
			return nil, err
		}
		if m.TenantID == tenantID && m.Status == StatusCompleted {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrArchiveNotFound, tenantID, archiveID)
}

// Delete removes the row for archiveID owned by tenantID.
func (s *MetadataStore) Delete(ctx context.Context, tenantID, archiveID string) error {
	_, err := s.store.DeleteMany(ctx, ArchivesCollection, docstore.Filter{
		docstore.IDField: archiveID,
		"tenantId":       tenantID,
	})
	if err != nil {
		return fmt.Errorf("delete archive record %s: %w", archiveID, err)
	}
	return nil
}

// AppendRestoreLog writes one audit entry.
func (s *MetadataStore) AppendRestoreLog(ctx context.Context, e *RestoreLogEntry) error {
	doc, err := toDocument(e)
	if err != nil {
		return err
	}
	if err := s.store.InsertMany(ctx, RestoreLogCollection, []docstore.Document{doc}); err != nil {
		return fmt.Errorf("append restore log: %w", err)
	}
	return nil
}

// RestoreLog returns the tenant's restore entries, oldest first.
func (s *MetadataStore) RestoreLog(ctx context.Context, tenantID string) ([]RestoreLogEntry, error) {
	docs, err := s.store.Find(ctx, RestoreLogCollection, docstore.Filter{"tenantId": tenantID})
	if err != nil {
		return nil, fmt.Errorf("read restore log: %w", err)
	}
	out := make([]RestoreLogEntry, 0, len(docs))
	for _, doc := range docs {
		var e RestoreLogEntry
		if err := fromDocument(doc, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RestoredAt.Before(out[j].RestoredAt) })
	return out, nil
}

// sortNewestFirst orders by CreatedAt, then ArchiveID, descending. ULIDs sort
// by time, so the tiebreak is stable across equal timestamps.
func sortNewestFirst(ms []ArchiveMetadata) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].ArchiveID > ms[j].ArchiveID
	})
}

func toDocument(v any) (docstore.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return doc, nil
}

func fromDocument(doc docstore.Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
