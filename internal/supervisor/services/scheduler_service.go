// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package services

import (
	"context"
	"fmt"
)

// SchedulerManager matches the *backup.Scheduler lifecycle.
type SchedulerManager interface {
	Start(ctx context.Context) error
	Stop()
}

// BackupSchedulerService runs the global backup scheduler under supervision.
//
// Stop waits for an in-flight sweep to return, so suture's shutdown timeout
// should exceed one tenant backup.
type BackupSchedulerService struct {
	manager SchedulerManager
	name    string
}

// NewBackupSchedulerService creates the wrapper.
func NewBackupSchedulerService(manager SchedulerManager) *BackupSchedulerService {
	return &BackupSchedulerService{
		manager: manager,
		name:    "backup-scheduler",
	}
}

// Serve implements suture.Service. A failed Start is returned so suture
// restarts the service after its backoff.
func (s *BackupSchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("backup scheduler start failed: %w", err)
	}

	<-ctx.Done()
	s.manager.Stop()
	return ctx.Err()
}

// String names the service in suture events.
func (s *BackupSchedulerService) String() string {
	return s.name
}
