// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package metrics holds the Prometheus collectors for Tenantvault.
//
// Collectors are registered on the default registry at package init through
// promauto and exposed by the HTTP control plane at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the backup, restore and retention collectors.
const (
	OutcomeCompleted     = "completed"
	OutcomePartial       = "partial"
	OutcomeFailed        = "failed"
	OutcomeNotConfigured = "not_configured"
)

var (
	// Backup Metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_backups_total",
			Help: "Total number of backup attempts by outcome",
		},
		[]string{"outcome"}, // completed, failed, not_configured
	)

	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenantvault_backup_duration_seconds",
			Help:    "Duration of backup runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	BackupDocuments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenantvault_backup_documents",
			Help:    "Number of documents captured per backup",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1 .. 262144
		},
	)

	BackupArchiveBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenantvault_backup_archive_bytes",
			Help:    "Size of uploaded archives in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB .. 256MiB
		},
	)

	UploadAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_upload_attempts_total",
			Help: "Total number of archive upload attempts",
		},
		[]string{"result"}, // success, retry, exhausted
	)

	// Restore Metrics
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_restores_total",
			Help: "Total number of restore attempts by outcome",
		},
		[]string{"outcome"}, // completed, partial, failed
	)

	RestoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenantvault_restore_duration_seconds",
			Help:    "Duration of restore runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	RestoredDocuments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantvault_restored_documents_total",
			Help: "Total number of documents written by restores",
		},
	)

	// Retention Metrics
	RetentionDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_retention_deletions_total",
			Help: "Archives removed by retention",
		},
		[]string{"result"}, // deleted, failed
	)

	// Scheduler Metrics
	SchedulerSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantvault_scheduler_sweeps_total",
			Help: "Total number of scheduler sweeps",
		},
	)

	SchedulerSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenantvault_scheduler_sweep_duration_seconds",
			Help:    "Duration of scheduler sweeps in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	SchedulerTenants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_scheduler_tenants_total",
			Help: "Tenants visited by scheduler sweeps",
		},
		[]string{"result"}, // backed_up, not_due, skipped, failed
	)

	SchedulerPendingRetries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantvault_scheduler_pending_retries",
			Help: "Number of tenants waiting for a delayed retry",
		},
	)

	SchedulerLastSweep = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantvault_scheduler_last_sweep_timestamp_seconds",
			Help: "Unix timestamp of the last completed sweep",
		},
	)

	// Object Storage Metrics
	StorageRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantvault_storage_request_duration_seconds",
			Help:    "Duration of object storage requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StorageRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_storage_requests_total",
			Help: "Total number of object storage requests",
		},
		[]string{"operation", "result"}, // result: success, error, not_found, unauthorized
	)

	CredentialRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_credential_refreshes_total",
			Help: "Credential refreshes triggered by storage auth failures",
		},
		[]string{"result"}, // success, failed
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)
)

// RecordBackup records the outcome of one backup run.
func RecordBackup(outcome string, duration time.Duration, documents int, archiveBytes int) {
	BackupsTotal.WithLabelValues(outcome).Inc()
	BackupDuration.Observe(duration.Seconds())
	if outcome == OutcomeCompleted {
		BackupDocuments.Observe(float64(documents))
		BackupArchiveBytes.Observe(float64(archiveBytes))
	}
}

// RecordRestore records the outcome of one restore run.
func RecordRestore(outcome string, duration time.Duration, documents int) {
	RestoresTotal.WithLabelValues(outcome).Inc()
	RestoreDuration.Observe(duration.Seconds())
	RestoredDocuments.Add(float64(documents))
}

// RecordRetentionDeletion records one archive removal attempt.
func RecordRetentionDeletion(err error) {
	if err != nil {
		RetentionDeletions.WithLabelValues("failed").Inc()
		return
	}
	RetentionDeletions.WithLabelValues("deleted").Inc()
}

// RecordSweep records a finished scheduler sweep.
func RecordSweep(duration time.Duration, finishedAt time.Time) {
	SchedulerSweeps.Inc()
	SchedulerSweepDuration.Observe(duration.Seconds())
	SchedulerLastSweep.Set(float64(finishedAt.Unix()))
}

// RecordStorageRequest records one object storage call. classify maps the
// error to a result label; nil errors are "success".
func RecordStorageRequest(operation string, duration time.Duration, err error, classify func(error) string) {
	StorageRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "error"
		if classify != nil {
			result = classify(err)
		}
	}
	StorageRequests.WithLabelValues(operation, result).Inc()
}

// RecordCredentialRefresh records a refresh triggered by an auth failure.
func RecordCredentialRefresh(err error) {
	if err != nil {
		CredentialRefreshes.WithLabelValues("failed").Inc()
		return
	}
	CredentialRefreshes.WithLabelValues("success").Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// StatusLabel formats an HTTP status code for the status_code label.
func StatusLabel(code int) string {
	return strconv.Itoa(code)
}
