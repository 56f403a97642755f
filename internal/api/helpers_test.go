// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantvault/internal/backup"
)

const (
	testTenant  = "tenant_a"
	testArchive = "01HV5Z3Q4K8M2N6P7R9S0T1V2W"
)

// mockBackupService implements BackupService for testing
type mockBackupService struct {
	createBackupFunc     func(ctx context.Context, tenantID string) (*backup.BackupResult, error)
	listArchivesFunc     func(ctx context.Context, tenantID string) ([]backup.ArchiveMetadata, error)
	getArchiveFunc       func(ctx context.Context, tenantID, archiveID string) (*backup.ArchiveMetadata, error)
	enforceRetentionFunc func(ctx context.Context, tenantID string) (*backup.RetentionResult, error)
}

func (m *mockBackupService) CreateBackup(ctx context.Context, tenantID string) (*backup.BackupResult, error) {
	if m.createBackupFunc != nil {
		return m.createBackupFunc(ctx, tenantID)
	}
	return nil, nil
}

func (m *mockBackupService) ListArchives(ctx context.Context, tenantID string) ([]backup.ArchiveMetadata, error) {
	if m.listArchivesFunc != nil {
		return m.listArchivesFunc(ctx, tenantID)
	}
	return nil, nil
}

func (m *mockBackupService) GetArchive(ctx context.Context, tenantID, archiveID string) (*backup.ArchiveMetadata, error) {
	if m.getArchiveFunc != nil {
		return m.getArchiveFunc(ctx, tenantID, archiveID)
	}
	return nil, backup.ErrArchiveNotFound
}

func (m *mockBackupService) EnforceRetention(ctx context.Context, tenantID string) (*backup.RetentionResult, error) {
	if m.enforceRetentionFunc != nil {
		return m.enforceRetentionFunc(ctx, tenantID)
	}
	return &backup.RetentionResult{TenantID: tenantID}, nil
}

// mockRestorer implements RestoreService for testing
type mockRestorer struct {
	restoreFunc func(ctx context.Context, tenantID, archiveID string) (*backup.RestoreResult, error)
}

func (m *mockRestorer) Restore(ctx context.Context, tenantID, archiveID string) (*backup.RestoreResult, error) {
	if m.restoreFunc != nil {
		return m.restoreFunc(ctx, tenantID, archiveID)
	}
	return nil, nil
}

// mockScheduler implements SchedulerService for testing
type mockScheduler struct {
	isBackupDueFunc   func(ctx context.Context, tenantID string) (bool, error)
	statusFunc        func() backup.SchedulerStatus
	runDueBackupsFunc func(ctx context.Context) (*backup.SweepReport, error)
}

func (m *mockScheduler) IsBackupDue(ctx context.Context, tenantID string) (bool, error) {
	if m.isBackupDueFunc != nil {
		return m.isBackupDueFunc(ctx, tenantID)
	}
	return false, nil
}

func (m *mockScheduler) Status() backup.SchedulerStatus {
	if m.statusFunc != nil {
		return m.statusFunc()
	}
	return backup.SchedulerStatus{}
}

func (m *mockScheduler) RunDueBackups(ctx context.Context) (*backup.SweepReport, error) {
	if m.runDueBackupsFunc != nil {
		return m.runDueBackupsFunc(ctx)
	}
	return &backup.SweepReport{}, nil
}

type stateFunc func() string

func (f stateFunc) State() string { return f() }

type testDeps struct {
	backups   *mockBackupService
	restorer  *mockRestorer
	scheduler *mockScheduler
	storage   StorageState
}

func newTestDeps() *testDeps {
	return &testDeps{
		backups:   &mockBackupService{},
		restorer:  &mockRestorer{},
		scheduler: &mockScheduler{},
	}
}

// newTestRouter builds the full router with rate limiting disabled.
func newTestRouter(t *testing.T, d *testDeps) http.Handler {
	t.Helper()
	h := NewHandler(HandlerDeps{
		Backups:   d.backups,
		Restorer:  d.restorer,
		Scheduler: d.scheduler,
		Storage:   d.storage,
		Version:   "test",
	})
	mc := DefaultChiMiddlewareConfig()
	mc.RateLimitDisabled = true
	return NewRouter(h, NewChiMiddleware(mc)).SetupChi()
}

// testResponse is APIResponse with Data left undecoded.
type testResponse struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp testResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func decodeData(t *testing.T, resp testResponse, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", resp.Data, err)
	}
}
