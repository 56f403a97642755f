// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package main is the Tenantvault daemon.

Tenantvault backs up each tenant's storefront records from the shared document
store into the tenant's own object storage, keeps the newest archives, and
restores a tenant from an archive on request.

# Application Architecture

	RootSupervisor ("tenantvault")
	├── BackupSupervisor ("backup-layer")
	│   └── Backup scheduler (sweeps every poll interval)
	└── APISupervisor ("api-layer")
	    └── Control plane HTTP server

Component initialization order:

 1. Configuration: koanf with defaults, YAML file and mapped environment variables
 2. Logging: zerolog, JSON or console
 3. Document store: BadgerDB, opened exclusively by this process
 4. Credential store: PostgreSQL (storage_credentials) or static config entries
 5. Object storage: S3-compatible or in-memory, behind a shared circuit breaker
 6. Backup service, restorer and scheduler
 7. Supervisor tree with the scheduler and the HTTP server

# Configuration

Common environment variables:

	CONFIG_PATH               YAML config file
	HTTP_ADDR                 control plane address (default 0.0.0.0:8650)
	STORE_PATH                Badger directory
	CREDENTIALS_DATABASE_URL  PostgreSQL URL of the credential store
	S3_ENDPOINT, S3_BUCKET    object storage location
	BACKUP_INTERVAL           minimum age of the newest archive before a new backup
	BACKUP_RETENTION_COUNT    archives kept per tenant

See internal/config for the full list.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The scheduler finishes its
in-flight tenant backup, the HTTP server drains for server.shutdown_timeout,
and the Badger store is closed last.
*/
package main
