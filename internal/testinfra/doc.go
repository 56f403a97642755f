// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package testinfra starts Docker containers for integration tests.
//
// It uses testcontainers-go to run the real backends Tenantvault talks to:
// PostgreSQL for the credential store and MinIO as an S3-compatible object
// store. Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// Tests call SkipIfNoDocker first so they skip cleanly without Docker.
package testinfra
