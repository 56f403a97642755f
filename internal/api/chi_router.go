// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tenantvault/internal/middleware"
)

// Router wires the Handler into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Post("/backups", router.handler.CreateBackup)
			r.Get("/backups", router.handler.ListArchives)
			r.Get("/backups/due", router.handler.BackupDue)
			r.Get("/backups/{archiveID}", router.handler.GetArchive)
			r.Post("/backups/{archiveID}/restore", router.handler.RestoreArchive)
			r.Post("/retention", router.handler.EnforceRetention)
		})

		r.Get("/scheduler", router.handler.SchedulerStatus)
		r.Post("/scheduler/sweep", router.handler.RunSweep)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	return r
}
