// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package middleware provides HTTP middleware for the control plane.

Key Components:

  - Request ID: UUID-based request tracking, propagated to the logging context
  - Prometheus Metrics: request counts, latency and in-flight gauge, labelled
    by chi route pattern so tenant and archive ids never become label values

Both are plain func(http.Handler) http.Handler and are installed with r.Use
on the chi router:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
