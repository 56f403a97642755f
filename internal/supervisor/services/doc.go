// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package services adapts Tenantvault's long-running components to suture.Service.

Each wrapper translates a component's own lifecycle into suture's
Serve(ctx) error contract:

  - BackupSchedulerService: Start(ctx)/Stop() of *backup.Scheduler
  - HTTPServerService: ListenAndServe()/Shutdown(ctx) of *http.Server

Wrappers return ctx.Err() on a requested shutdown and a wrapped error on a
crash, which suture answers with a restart after its backoff.

Example:

	tree.AddBackupService(services.NewBackupSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
*/
package services
