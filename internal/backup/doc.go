// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package backup snapshots tenant data into archives, stores them in object
// storage, prunes old archives and restores tenants from them.
//
// Components:
//
//	┌──────────────┐     ┌─────────────────┐     ┌──────────────┐
//	│  Scheduler   │────▶│     Service     │────▶│   objstore   │
//	└──────────────┘     └─────────────────┘     └──────────────┘
//	       │                     │                      ▲
//	       ▼                     ▼                      │
//	┌──────────────┐     ┌─────────────────┐     ┌──────────────┐
//	│ backup_leases│     │    docstore     │◀────│   Restorer   │
//	└──────────────┘     └─────────────────┘     └──────────────┘
//
// Only the collections named in a CollectionSpec are ever read or written.
// Archive metadata, the restore log and scheduler leases live in their own
// bookkeeping collections, which a CollectionSpec may not name.
//
// Scheduling is derived from persisted metadata: a tenant is due when its
// newest completed archive is older than the backup interval, so a restarted
// process neither repeats nor skips backups.
//
// Usage:
//
//	svc, err := backup.NewService(store, creds, provider, backup.ServiceConfig{})
//	restorer := backup.NewRestorer(svc)
//	sched := backup.NewScheduler(svc, creds, backup.SchedulerConfig{})
//	if err := sched.Start(ctx); err != nil {
//		return err
//	}
//	defer sched.Stop()
//
//	result, err := restorer.Restore(ctx, tenantID, archiveID)
package backup
