// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"

	"github.com/tomtom215/tenantvault/internal/credentials"
	"github.com/tomtom215/tenantvault/internal/docstore"
	"github.com/tomtom215/tenantvault/internal/objstore"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var errInjected = errors.New("injected failure")

// spyStore counts reads and writes per collection and can fail
// replacements.
type spyStore struct {
	*docstore.BadgerStore

	mu          sync.Mutex
	reads       map[string]int
	writes      map[string]int
	failReplace map[string]error
}

func (s *spyStore) record(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[collection]++
}

func (s *spyStore) Find(ctx context.Context, collection string, filter docstore.Filter) ([]docstore.Document, error) {
	s.mu.Lock()
	s.reads[collection]++
	s.mu.Unlock()
	return s.BadgerStore.Find(ctx, collection, filter)
}

// touches returns the reads and writes seen for collection.
func (s *spyStore) touches(collection string) (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[collection], s.writes[collection]
}

func (s *spyStore) InsertMany(ctx context.Context, collection string, docs []docstore.Document) error {
	s.record(collection)
	return s.BadgerStore.InsertMany(ctx, collection, docs)
}

func (s *spyStore) DeleteMany(ctx context.Context, collection string, filter docstore.Filter) (int, error) {
	s.record(collection)
	return s.BadgerStore.DeleteMany(ctx, collection, filter)
}

func (s *spyStore) ReplaceMany(ctx context.Context, collection string, filter docstore.Filter, docs []docstore.Document) (int, error) {
	s.record(collection)
	s.mu.Lock()
	err := s.failReplace[collection]
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.BadgerStore.ReplaceMany(ctx, collection, filter, docs)
}

func (s *spyStore) failReplaceOf(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReplace[collection] = err
}

// tenantWrites counts writes to allow-listed collections only.
func (s *spyStore) tenantWrites(spec CollectionSpec) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, name := range spec.Names() {
		n += s.writes[name]
	}
	return n
}

type testEnv struct {
	store    *spyStore
	bucket   *objstore.MemoryBucket
	creds    *credentials.StaticStore
	clock    *testclock.Clock
	svc      *Service
	restorer *Restorer
}

type envOption func(*ServiceConfig)

func withRetention(k int) envOption {
	return func(c *ServiceConfig) { c.RetentionCount = k }
}

func withUpload(p RetryPolicy) envOption {
	return func(c *ServiceConfig) { c.Upload = p }
}

func withClock(clk clock.Clock) envOption {
	return func(c *ServiceConfig) { c.Clock = clk }
}

func withCompression(comp Compression) envOption {
	return func(c *ServiceConfig) { c.Compression = comp }
}

// newTestEnv wires a Service over in-memory Badger and a memory bucket. The
// default upload policy makes one attempt so tests never wait on the clock.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db, err := docstore.OpenBadger(docstore.Options{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := &spyStore{
		BadgerStore: db,
		reads:       make(map[string]int),
		writes:      make(map[string]int),
		failReplace: make(map[string]error),
	}
	bucket := objstore.NewMemoryBucket()
	creds := credentials.NewStaticStore()
	clk := testclock.NewClock(testEpoch)
	provider := objstore.NewProvider(objstore.NewMemoryFactory(bucket), creds, objstore.ProviderConfig{})

	cfg := ServiceConfig{
		Clock:          clk,
		Upload:         RetryPolicy{MaxAttempts: 1},
		RecordFailures: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc, err := NewService(store, creds, provider, cfg)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return &testEnv{
		store:    store,
		bucket:   bucket,
		creds:    creds,
		clock:    clk,
		svc:      svc,
		restorer: NewRestorer(svc),
	}
}

// addTenant gives tenantID a usable credential and seeds its data.
func (e *testEnv) addTenant(t *testing.T, tenantID string, orders int) {
	t.Helper()
	e.creds.Put(credentials.Credential{
		TenantID:        tenantID,
		AccessKeyID:     "key-" + tenantID,
		SecretAccessKey: "secret",
		FolderHint:      tenantID,
	})
	e.seed(t, tenantID, orders)
}

func (e *testEnv) seed(t *testing.T, tenantID string, orders int) {
	t.Helper()
	ctx := context.Background()

	if err := e.store.BadgerStore.InsertMany(ctx, "users", []docstore.Document{
		{"_id": tenantID, "storeName": "Store " + tenantID},
	}); err != nil {
		t.Fatalf("seed users: %v", err)
	}
	if err := e.store.BadgerStore.InsertMany(ctx, "settings", []docstore.Document{
		{"_id": tenantID + "-settings", "userId": tenantID, "currency": "EUR"},
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	docs := make([]docstore.Document, 0, orders)
	for i := 0; i < orders; i++ {
		docs = append(docs, docstore.Document{
			"_id":    fmt.Sprintf("%s-order-%d", tenantID, i),
			"userId": tenantID,
			"total":  float64(10 * (i + 1)),
		})
	}
	if len(docs) > 0 {
		if err := e.store.BadgerStore.InsertMany(ctx, "orders", docs); err != nil {
			t.Fatalf("seed orders: %v", err)
		}
	}
}

// find reads around the spy so assertions do not count as reads.
func (e *testEnv) find(t *testing.T, collection string, filter docstore.Filter) []docstore.Document {
	t.Helper()
	docs, err := e.store.BadgerStore.Find(context.Background(), collection, filter)
	if err != nil {
		t.Fatalf("Find(%s) error: %v", collection, err)
	}
	return docs
}

func (e *testEnv) backup(t *testing.T, tenantID string) *BackupResult {
	t.Helper()
	res, err := e.svc.CreateBackup(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("CreateBackup(%s) error: %v", tenantID, err)
	}
	return res
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
