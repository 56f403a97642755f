// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/tomtom215/tenantvault/internal/docstore"
	"github.com/tomtom215/tenantvault/internal/objstore"
)

func docIDs(docs []docstore.Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		id, _ := d.ID()
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// overwriteArchive replaces the blob of a recorded archive.
func (e *testEnv) overwriteArchive(t *testing.T, tenantID, archiveID string, a *Archive) {
	t.Helper()
	m, err := e.svc.GetArchive(context.Background(), tenantID, archiveID)
	if err != nil {
		t.Fatalf("GetArchive() error: %v", err)
	}
	data, err := Serialize(a, CompressionZstd)
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if err := e.bucket.Overwrite(m.StorageObjectID, data); err != nil {
		t.Fatalf("Overwrite() error: %v", err)
	}
}

func TestRestore_ReplacesTenantData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.addTenant(t, "tenant_a", 3)
	env.addTenant(t, "tenant_b", 2)

	// sessions is outside the allow-list and must never be read or written.
	session := docstore.Document{"_id": "s1", "userId": "tenant_a", "token": "opaque", "remember": true}
	if err := env.store.BadgerStore.InsertMany(ctx, "sessions", []docstore.Document{session}); err != nil {
		t.Fatalf("InsertMany() error: %v", err)
	}

	res := env.backup(t, "tenant_a")

	wantOrders := docIDs(env.find(t, "orders", docstore.Filter{"userId": "tenant_a"}))
	otherBefore := docIDs(env.find(t, "orders", docstore.Filter{"userId": "tenant_b"}))

	// Diverge from the snapshot: drop one order and add one.
	if _, err := env.store.BadgerStore.DeleteMany(ctx, "orders", docstore.Filter{"_id": "tenant_a-order-0"}); err != nil {
		t.Fatalf("DeleteMany() error: %v", err)
	}
	if err := env.store.BadgerStore.InsertMany(ctx, "orders", []docstore.Document{
		{"_id": "tenant_a-order-new", "userId": "tenant_a"},
	}); err != nil {
		t.Fatalf("InsertMany() error: %v", err)
	}

	for i := 0; i < 2; i++ {
		result, err := env.restorer.Restore(ctx, "tenant_a", res.ArchiveID)
		if err != nil {
			t.Fatalf("Restore() #%d error: %v", i+1, err)
		}
		if result.Status != RestoreCompleted || result.RestoredRecordCount != res.TotalRecordCount {
			t.Errorf("Restore() #%d = %+v", i+1, result)
		}
		if len(result.CollectionsRestored) != len(DefaultCollectionSpec().Collections) {
			t.Errorf("CollectionsRestored = %v", result.CollectionsRestored)
		}

		got := docIDs(env.find(t, "orders", docstore.Filter{"userId": "tenant_a"}))
		if !equalIDs(got, wantOrders) {
			t.Errorf("orders after restore #%d = %v, want %v", i+1, got, wantOrders)
		}
	}

	if got := docIDs(env.find(t, "orders", docstore.Filter{"userId": "tenant_b"})); !equalIDs(got, otherBefore) {
		t.Errorf("tenant_b orders = %v, want %v", got, otherBefore)
	}
	if got := env.find(t, "sessions", nil); len(got) != 1 || !reflect.DeepEqual(got[0], session) {
		t.Errorf("sessions = %v, want [%v]", got, session)
	}
	if reads, writes := env.store.touches("sessions"); reads != 0 || writes != 0 {
		t.Errorf("sessions touched: %d reads, %d writes; want none", reads, writes)
	}
	if got := env.find(t, "users", docstore.Filter{"_id": "tenant_a"}); len(got) != 1 || got[0]["storeName"] != "Store tenant_a" {
		t.Errorf("users = %v", got)
	}

	log, err := env.svc.Metadata().RestoreLog(ctx, "tenant_a")
	if err != nil {
		t.Fatalf("RestoreLog() error: %v", err)
	}
	if len(log) != 2 || log[0].Status != RestoreCompleted || log[0].ArchiveID != res.ArchiveID {
		t.Errorf("restore log = %+v", log)
	}
}

func TestRestore_LeavesAbsentCollections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.addTenant(t, "tenant_a", 3)
	res := env.backup(t, "tenant_a")

	// An archive that carries users and settings but no orders.
	a := &Archive{
		Metadata: ArchiveHeader{
			ArchiveID:     res.ArchiveID,
			TenantID:      "tenant_a",
			CreatedAt:     testEpoch,
			FormatVersion: FormatVersion,
			Collections:   []string{"users", "settings"},
		},
		Collections: map[string][]docstore.Document{
			"users":    {{"_id": "tenant_a", "storeName": "Renamed"}},
			"settings": {{"_id": "tenant_a-settings", "userId": "tenant_a", "currency": "USD"}},
		},
	}
	a.Metadata.TotalDocuments = a.CountDocuments()
	env.overwriteArchive(t, "tenant_a", res.ArchiveID, a)

	wantOrders := docIDs(env.find(t, "orders", docstore.Filter{"userId": "tenant_a"}))
	_, ordersWrites := env.store.touches("orders")

	result, err := env.restorer.Restore(ctx, "tenant_a", res.ArchiveID)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if !equalIDs(result.CollectionsRestored, []string{"users", "settings"}) {
		t.Errorf("CollectionsRestored = %v, want [users settings]", result.CollectionsRestored)
	}
	if result.RestoredRecordCount != 2 {
		t.Errorf("RestoredRecordCount = %d, want 2", result.RestoredRecordCount)
	}

	if got := docIDs(env.find(t, "orders", docstore.Filter{"userId": "tenant_a"})); !equalIDs(got, wantOrders) || len(got) != 3 {
		t.Errorf("orders = %v, want %v", got, wantOrders)
	}
	if _, writes := env.store.touches("orders"); writes != ordersWrites {
		t.Errorf("orders writes = %d, want %d", writes, ordersWrites)
	}
	if got := env.find(t, "users", docstore.Filter{"_id": "tenant_a"}); len(got) != 1 || got[0]["storeName"] != "Renamed" {
		t.Errorf("users = %v, want the archived record", got)
	}
}

func TestRestore_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T, env *testEnv, archiveID string) (tenantID, restoreID string)
		wantErr error
	}{
		{
			name: "unknown archive",
			setup: func(_ *testing.T, _ *testEnv, _ string) (string, string) {
				return "tenant_a", "01HV5Z3Q4K8M2N6P7R9S0T1V2W"
			},
			wantErr: ErrArchiveNotFound,
		},
		{
			name: "another tenant's archive",
			setup: func(t *testing.T, env *testEnv, archiveID string) (string, string) {
				env.addTenant(t, "tenant_b", 1)
				return "tenant_b", archiveID
			},
			wantErr: ErrArchiveNotFound,
		},
		{
			name: "invalid tenant",
			setup: func(_ *testing.T, _ *testEnv, archiveID string) (string, string) {
				return "../tenant_a", archiveID
			},
			wantErr: ErrInvalidTenantID,
		},
		{
			name: "credential removed",
			setup: func(_ *testing.T, env *testEnv, archiveID string) (string, string) {
				env.creds.Delete("tenant_a")
				return "tenant_a", archiveID
			},
			wantErr: ErrNotConfigured,
		},
		{
			name: "blob missing",
			setup: func(t *testing.T, env *testEnv, archiveID string) (string, string) {
				m, err := env.svc.GetArchive(context.Background(), "tenant_a", archiveID)
				if err != nil {
					t.Fatalf("GetArchive() error: %v", err)
				}
				env.bucket.Remove(m.StorageObjectID)
				return "tenant_a", archiveID
			},
			wantErr: ErrArchiveFileMissing,
		},
		{
			name: "garbage blob",
			setup: func(t *testing.T, env *testEnv, archiveID string) (string, string) {
				m, _ := env.svc.GetArchive(context.Background(), "tenant_a", archiveID)
				if err := env.bucket.Overwrite(m.StorageObjectID, []byte("not an archive")); err != nil {
					t.Fatalf("Overwrite() error: %v", err)
				}
				return "tenant_a", archiveID
			},
			wantErr: ErrCorruptArchive,
		},
		{
			name: "oversized blob",
			setup: func(_ *testing.T, env *testEnv, archiveID string) (string, string) {
				env.bucket.InjectFault(objstore.OpDownload, 1, fmt.Errorf("read: %w", objstore.ErrObjectTooLarge))
				return "tenant_a", archiveID
			},
			wantErr: ErrCorruptArchive,
		},
		{
			name: "foreign record",
			setup: func(t *testing.T, env *testEnv, archiveID string) (string, string) {
				a := newTestArchive(map[string][]docstore.Document{
					"orders": {{"_id": "x", "userId": "tenant_b"}},
				})
				a.Metadata.TenantID, a.Metadata.ArchiveID = "tenant_a", archiveID
				env.overwriteArchive(t, "tenant_a", archiveID, a)
				return "tenant_a", archiveID
			},
			wantErr: ErrCorruptArchive,
		},
		{
			name: "collection outside allow-list",
			setup: func(t *testing.T, env *testEnv, archiveID string) (string, string) {
				a := newTestArchive(map[string][]docstore.Document{
					"sessions": {{"_id": "s", "userId": "tenant_a"}},
				})
				a.Metadata.TenantID, a.Metadata.ArchiveID = "tenant_a", archiveID
				env.overwriteArchive(t, "tenant_a", archiveID, a)
				return "tenant_a", archiveID
			},
			wantErr: ErrCorruptArchive,
		},
		{
			name: "header for another tenant",
			setup: func(t *testing.T, env *testEnv, archiveID string) (string, string) {
				a := newTestArchive(map[string][]docstore.Document{})
				a.Metadata.TenantID, a.Metadata.ArchiveID = "tenant_b", archiveID
				env.overwriteArchive(t, "tenant_a", archiveID, a)
				return "tenant_a", archiveID
			},
			wantErr: ErrCorruptArchive,
		},
		{
			name: "count mismatch",
			setup: func(t *testing.T, env *testEnv, archiveID string) (string, string) {
				a := newTestArchive(map[string][]docstore.Document{
					"orders": {{"_id": "o", "userId": "tenant_a"}},
				})
				a.Metadata.TenantID, a.Metadata.ArchiveID = "tenant_a", archiveID
				a.Metadata.TotalDocuments = 7
				env.overwriteArchive(t, "tenant_a", archiveID, a)
				return "tenant_a", archiveID
			},
			wantErr: ErrCorruptArchive,
		},
		{
			name: "two identity records",
			setup: func(t *testing.T, env *testEnv, archiveID string) (string, string) {
				a := newTestArchive(map[string][]docstore.Document{
					"users": {{"_id": "tenant_a"}, {"_id": "tenant_a"}},
				})
				a.Metadata.TenantID, a.Metadata.ArchiveID = "tenant_a", archiveID
				env.overwriteArchive(t, "tenant_a", archiveID, a)
				return "tenant_a", archiveID
			},
			wantErr: ErrCorruptArchive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.addTenant(t, "tenant_a", 2)
			res := env.backup(t, "tenant_a")
			before := env.store.tenantWrites(env.svc.Collections())

			tenantID, archiveID := tt.setup(t, env, res.ArchiveID)
			_, err := env.restorer.Restore(context.Background(), tenantID, archiveID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Restore() error = %v, want %v", err, tt.wantErr)
			}
			if after := env.store.tenantWrites(env.svc.Collections()); after != before {
				t.Errorf("tenant collection writes = %d, want none", after-before)
			}
		})
	}
}

func TestRestore_Partial(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.addTenant(t, "tenant_a", 2)
	res := env.backup(t, "tenant_a")
	env.store.failReplaceOf("orders", errInjected)

	result, err := env.restorer.Restore(ctx, "tenant_a", res.ArchiveID)
	if !errors.Is(err, ErrPartialRestore) {
		t.Fatalf("Restore() error = %v, want ErrPartialRestore", err)
	}
	if result == nil || result.Status != RestorePartial {
		t.Fatalf("result = %+v, want partial", result)
	}
	if len(result.CollectionsFailed) != 1 || result.CollectionsFailed[0] != "orders" {
		t.Errorf("CollectionsFailed = %v, want [orders]", result.CollectionsFailed)
	}
	if want := len(DefaultCollectionSpec().Collections) - 1; len(result.CollectionsRestored) != want {
		t.Errorf("CollectionsRestored = %d, want %d", len(result.CollectionsRestored), want)
	}

	log, _ := env.svc.Metadata().RestoreLog(ctx, "tenant_a")
	if len(log) != 1 || log[0].Status != RestorePartial || log[0].Error == "" {
		t.Errorf("restore log = %+v", log)
	}
}

func TestRestore_CanceledContextBeforeLoad(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addTenant(t, "tenant_a", 1)
	res := env.backup(t, "tenant_a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.restorer.Restore(ctx, "tenant_a", res.ArchiveID); !errors.Is(err, context.Canceled) {
		t.Errorf("Restore() error = %v, want context.Canceled", err)
	}
	if n := env.bucket.Calls(objstore.OpDownload); n != 0 {
		t.Errorf("download calls = %d, want 0", n)
	}
}
