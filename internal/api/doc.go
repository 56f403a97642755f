// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package api provides the HTTP control plane for Tenantvault.

Operators and the tenantvaultctl CLI use it to trigger backups and restores,
inspect archives, prune old archives and drive the scheduler. The daemon owns
the Badger store exclusively, so every out-of-process operation goes through
this API.

Routes:

	POST /api/v1/tenants/{tenantID}/backups                      create a backup
	GET  /api/v1/tenants/{tenantID}/backups                      list archives
	GET  /api/v1/tenants/{tenantID}/backups/due                  due check
	GET  /api/v1/tenants/{tenantID}/backups/{archiveID}          one archive
	POST /api/v1/tenants/{tenantID}/backups/{archiveID}/restore  restore
	POST /api/v1/tenants/{tenantID}/retention                    prune
	GET  /api/v1/scheduler                                       scheduler status
	POST /api/v1/scheduler/sweep                                 run one sweep
	GET  /health
	GET  /metrics

Every JSON response uses the same envelope:

	{"status": "success"|"error", "data": ..., "metadata": {"timestamp": ...},
	 "error": {"code": "...", "message": "..."}}

Backup errors map to status codes in errors.go. A partial restore answers
207 with the restore result as data and the error filled in.
*/
package api
