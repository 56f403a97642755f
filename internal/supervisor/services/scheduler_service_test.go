// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockSchedulerManager is a test double for SchedulerManager.
type mockSchedulerManager struct {
	startErr   error
	startCount atomic.Int32
	stopCount  atomic.Int32
	started    chan struct{}
}

func newMockSchedulerManager() *mockSchedulerManager {
	return &mockSchedulerManager{started: make(chan struct{}, 10)}
}

func (m *mockSchedulerManager) Start(context.Context) error {
	m.startCount.Add(1)
	select {
	case m.started <- struct{}{}:
	default:
	}
	return m.startErr
}

func (m *mockSchedulerManager) Stop() {
	m.stopCount.Add(1)
}

func TestBackupSchedulerService_Interface(t *testing.T) {
	var _ suture.Service = (*BackupSchedulerService)(nil)
}

func TestBackupSchedulerService_Serve(t *testing.T) {
	t.Run("stops scheduler on context cancellation", func(t *testing.T) {
		mgr := newMockSchedulerManager()
		svc := NewBackupSchedulerService(mgr)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		select {
		case <-mgr.started:
		case <-time.After(time.Second):
			t.Fatal("scheduler was not started")
		}
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancellation")
		}
		if mgr.stopCount.Load() != 1 {
			t.Errorf("Stop calls = %d, want 1", mgr.stopCount.Load())
		}
	})

	t.Run("returns start failure without stopping", func(t *testing.T) {
		startErr := errors.New("credentials db unreachable")
		mgr := newMockSchedulerManager()
		mgr.startErr = startErr
		svc := NewBackupSchedulerService(mgr)

		err := svc.Serve(context.Background())
		if !errors.Is(err, startErr) {
			t.Fatalf("expected start error, got %v", err)
		}
		if mgr.stopCount.Load() != 0 {
			t.Errorf("Stop called after failed Start")
		}
	})
}

func TestBackupSchedulerService_String(t *testing.T) {
	if got := NewBackupSchedulerService(newMockSchedulerManager()).String(); got != "backup-scheduler" {
		t.Errorf("String() = %q", got)
	}
}

func TestBackupSchedulerService_RestartedBySupervisor(t *testing.T) {
	mgr := newMockSchedulerManager()
	mgr.startErr = errors.New("transient")
	svc := NewBackupSchedulerService(mgr)

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for mgr.startCount.Load() < 2 {
		select {
		case <-mgr.started:
		case <-deadline:
			t.Fatalf("scheduler started %d times, want a restart", mgr.startCount.Load())
		}
	}
	cancel()
	<-errCh
}
