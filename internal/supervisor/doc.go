// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package supervisor provides process supervision for Tenantvault using suture v4.

The daemon runs two long-lived services, each in its own layer so one can
crash and restart without the other:

	RootSupervisor ("tenantvault")
	├── BackupSupervisor ("backup-layer")
	│   └── BackupSchedulerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's exponential backoff. Supervisor events
(service failures, restarts, backoff) go through sutureslog into the zerolog
stream via logging.SlogHandler.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
	    supervisor.TreeConfigFromConfig(cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddBackupService(services.NewBackupSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

On cancellation every service gets ShutdownTimeout to return;
UnstoppedServiceReport names the ones that did not.
*/
package supervisor
