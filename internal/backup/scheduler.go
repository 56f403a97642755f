// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
scheduler.go - Global Backup Scheduler

The scheduler polls on a short interval and backs up every tenant whose
newest completed archive is older than the backup interval. Due-ness is read
from the archive metadata on every poll, so the cadence survives restarts
and stalls without a long-lived timer.

Sweep Rules:
  - Tenants are visited one at a time with a fixed delay between backups
  - A failed tenant does not stop the sweep
  - A failed tenant gets delayed retries per the retry policy and is skipped
    by sweeps while one is pending; only a running scheduler arms retries
  - Sweeps and retries never overlap

Stop ends the poll loop and cancels pending retries. A backup already
running finishes on a context detached from the scheduler.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantvault/internal/credentials"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
)

// Scheduler defaults.
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultBackupInterval = 30 * time.Minute
	DefaultTenantDelay    = 2 * time.Second
)

// SchedulerConfig configures NewScheduler. Zero durations select defaults,
// except TenantDelay and LeaseTTL where zero disables the feature.
type SchedulerConfig struct {
	PollInterval   time.Duration
	BackupInterval time.Duration
	TenantDelay    time.Duration
	// Retry governs delayed retries of failed tenants. MaxAttempts counts
	// the failed sweep attempt, so 2 means one retry.
	Retry RetryPolicy
	// LeaseTTL enables tenant claims in LeasesCollection when positive.
	LeaseTTL    time.Duration
	LeaseHolder string
}

// Scheduler runs due backups in the background.
type Scheduler struct {
	svc   *Service
	creds credentials.Store
	cfg   SchedulerConfig
	clock clock.Clock
	lease *leaseManager
	log   zerolog.Logger

	// runMu serializes sweeps and retries.
	runMu sync.Mutex

	// State - all protected by mu
	mu              sync.Mutex
	ctx             context.Context
	cancel          context.CancelFunc
	running         bool
	stopping        bool
	stopDone        chan struct{}
	timerActive     bool
	retries         map[string]*pendingRetry
	lastSweepAt     time.Time
	lastSweepErrors int
}

type pendingRetry struct {
	timer   clock.Timer
	attempt int
}

// NewScheduler returns a stopped scheduler.
func NewScheduler(svc *Service, creds credentials.Store, cfg SchedulerConfig) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BackupInterval <= 0 {
		cfg.BackupInterval = DefaultBackupInterval
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultSweepRetryPolicy()
	}

	s := &Scheduler{
		svc:     svc,
		creds:   creds,
		cfg:     cfg,
		clock:   svc.clock,
		log:     logging.WithComponent("scheduler"),
		retries: make(map[string]*pendingRetry),
	}
	if cfg.LeaseTTL > 0 {
		s.lease = newLeaseManager(svc.store, cfg.LeaseHolder, cfg.LeaseTTL, svc.clock)
	}
	return s
}

// Start runs a sweep immediately and then polls every PollInterval until
// Stop or ctx is canceled. Starting a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	// Wait for any in-progress Stop() to complete
	for s.stopping {
		stopDone := s.stopDone
		s.mu.Unlock()
		<-stopDone
		s.mu.Lock()
	}

	if s.running {
		s.mu.Unlock()
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.stopDone = make(chan struct{})
	loopCtx := s.ctx
	done := s.stopDone
	s.mu.Unlock()

	go s.run(loopCtx, done)

	s.log.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("backup_interval", s.cfg.BackupInterval).
		Bool("lease", s.lease != nil).
		Msg("Backup scheduler started")
	return nil
}

// Stop ends the poll loop and cancels pending retries. It waits for the loop
// to exit, which includes any backup in progress. Stopping a stopped
// scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running || s.stopping {
		s.mu.Unlock()
		return
	}

	s.cancel()
	s.running = false
	s.stopping = true
	stopDone := s.stopDone
	s.cancelRetriesLocked()
	s.mu.Unlock()

	<-stopDone

	s.mu.Lock()
	s.stopping = false
	s.cancelRetriesLocked()
	s.mu.Unlock()

	s.log.Info().Msg("Backup scheduler stopped")
}

// cancelRetriesLocked stops and forgets every pending retry. Requires mu.
func (s *Scheduler) cancelRetriesLocked() {
	for tenantID, r := range s.retries {
		r.timer.Stop()
		delete(s.retries, tenantID)
	}
	metrics.SchedulerPendingRetries.Set(0)
}

// Status reports the scheduler state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]string, 0, len(s.retries))
	for tenantID := range s.retries {
		pending = append(pending, tenantID)
	}
	sort.Strings(pending)

	return SchedulerStatus{
		Running:         s.running,
		HasActiveTimer:  s.timerActive,
		PendingRetries:  pending,
		LastSweepAt:     s.lastSweepAt,
		LastSweepErrors: s.lastSweepErrors,
	}
}

// IsBackupDue reports whether the tenant has no completed archive or its
// newest one is at least BackupInterval old.
func (s *Scheduler) IsBackupDue(ctx context.Context, tenantID string) (bool, error) {
	if err := checkTenantID(tenantID); err != nil {
		return false, err
	}
	latest, err := s.svc.meta.Latest(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return true, nil
	}
	return s.clock.Now().Sub(latest.CreatedAt) >= s.cfg.BackupInterval, nil
}

// RunDueBackups sweeps all tenants with a usable credential once. Per-tenant
// failures are joined into the returned error; the report is always
// returned.
func (s *Scheduler) RunDueBackups(ctx context.Context) (*SweepReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.sweep(ctx)
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if _, err := s.RunDueBackups(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Backup sweep finished with failures")
	}

	timer := s.clock.NewTimer(s.cfg.PollInterval)
	s.setTimerActive(true)
	defer func() {
		timer.Stop()
		s.setTimerActive(false)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			if _, err := s.RunDueBackups(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Backup sweep finished with failures")
			}
			timer.Reset(s.cfg.PollInterval)
		}
	}
}

func (s *Scheduler) setTimerActive(active bool) {
	s.mu.Lock()
	s.timerActive = active
	s.mu.Unlock()
}

// sweep requires runMu.
func (s *Scheduler) sweep(ctx context.Context) (*SweepReport, error) {
	start := s.clock.Now()
	report := &SweepReport{
		StartedAt: start,
		BackedUp:  []string{},
		NotDue:    []string{},
		Skipped:   []string{},
		Failed:    []TenantFailure{},
	}

	tenants, err := s.creds.ListUsable(ctx, start)
	if err != nil {
		s.finishSweep(report, 1)
		return report, fmt.Errorf("list tenants: %w", err)
	}

	var errs []error
	backedUpAny := false
	for _, cred := range tenants {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		tenantID := cred.TenantID
		report.Checked++

		if s.hasPendingRetry(tenantID) {
			report.Skipped = append(report.Skipped, tenantID)
			metrics.SchedulerTenants.WithLabelValues("skipped").Inc()
			continue
		}

		due, err := s.IsBackupDue(ctx, tenantID)
		if err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			report.Failed = append(report.Failed, TenantFailure{TenantID: tenantID, Error: err.Error()})
			metrics.SchedulerTenants.WithLabelValues("failed").Inc()
			continue
		}
		if !due {
			report.NotDue = append(report.NotDue, tenantID)
			metrics.SchedulerTenants.WithLabelValues("not_due").Inc()
			continue
		}

		if backedUpAny && s.cfg.TenantDelay > 0 {
			select {
			case <-ctx.Done():
				report.Interrupted = true
			case <-s.clock.After(s.cfg.TenantDelay):
			}
			if report.Interrupted {
				break
			}
		}
		backedUpAny = true

		err = s.backupTenant(ctx, tenantID)
		switch {
		case err == nil:
			report.BackedUp = append(report.BackedUp, tenantID)
			metrics.SchedulerTenants.WithLabelValues("backed_up").Inc()
		case errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrLeaseHeld):
			report.Skipped = append(report.Skipped, tenantID)
			metrics.SchedulerTenants.WithLabelValues("skipped").Inc()
			s.log.Info().Err(err).Str("tenant_id", tenantID).Msg("Skipping tenant")
		default:
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			report.Failed = append(report.Failed, TenantFailure{TenantID: tenantID, Error: err.Error()})
			metrics.SchedulerTenants.WithLabelValues("failed").Inc()
			s.log.Error().Err(err).Str("tenant_id", tenantID).Msg("Scheduled backup failed")
			s.scheduleRetry(tenantID, 1)
		}
	}

	s.finishSweep(report, len(report.Failed))
	s.log.Debug().
		Int("checked", report.Checked).
		Int("backed_up", len(report.BackedUp)).
		Int("failed", len(report.Failed)).
		Bool("interrupted", report.Interrupted).
		Msg("Backup sweep finished")
	return report, errors.Join(errs...)
}

func (s *Scheduler) finishSweep(report *SweepReport, failures int) {
	report.FinishedAt = s.clock.Now()
	metrics.RecordSweep(report.FinishedAt.Sub(report.StartedAt), report.FinishedAt)

	s.mu.Lock()
	s.lastSweepAt = report.FinishedAt
	s.lastSweepErrors = failures
	s.mu.Unlock()
}

// backupTenant runs one backup on a context that Stop cannot cancel.
func (s *Scheduler) backupTenant(ctx context.Context, tenantID string) error {
	bctx := context.WithoutCancel(ctx)
	if s.lease != nil {
		if err := s.lease.acquire(bctx, tenantID); err != nil {
			return err
		}
		defer func() {
			if err := s.lease.release(bctx, tenantID); err != nil {
				s.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Failed to release backup lease")
			}
		}()
	}
	_, err := s.svc.CreateBackup(bctx, tenantID)
	return err
}

func (s *Scheduler) hasPendingRetry(tenantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.retries[tenantID]
	return ok
}

// scheduleRetry arms a retry after the failed attempt number, if the policy
// allows another attempt. A stopped or stopping scheduler arms nothing.
func (s *Scheduler) scheduleRetry(tenantID string, failedAttempt int) {
	if failedAttempt >= s.cfg.Retry.attempts() {
		s.log.Warn().Str("tenant_id", tenantID).Int("attempt", failedAttempt).Msg("Retries exhausted, waiting for next due check")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.stopping {
		s.log.Debug().Str("tenant_id", tenantID).Msg("Scheduler not running, retry not armed")
		return
	}
	if _, ok := s.retries[tenantID]; ok {
		return
	}
	delay := s.cfg.Retry.Delay(failedAttempt)
	r := &pendingRetry{attempt: failedAttempt + 1}
	r.timer = s.clock.AfterFunc(delay, func() { s.runRetry(tenantID, r) })
	s.retries[tenantID] = r
	metrics.SchedulerPendingRetries.Set(float64(len(s.retries)))

	s.log.Info().Str("tenant_id", tenantID).Dur("delay", delay).Int("attempt", r.attempt).Msg("Backup retry scheduled")
}

func (s *Scheduler) runRetry(tenantID string, r *pendingRetry) {
	s.mu.Lock()
	if s.retries[tenantID] != r || !s.running {
		// Canceled by Stop.
		s.mu.Unlock()
		return
	}
	delete(s.retries, tenantID)
	metrics.SchedulerPendingRetries.Set(float64(len(s.retries)))
	s.mu.Unlock()

	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx := context.Background()
	due, err := s.IsBackupDue(ctx, tenantID)
	if err != nil {
		s.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Retry due check failed")
		return
	}
	if !due {
		return
	}

	err = s.backupTenant(ctx, tenantID)
	switch {
	case err == nil:
		s.log.Info().Str("tenant_id", tenantID).Int("attempt", r.attempt).Msg("Backup retry succeeded")
	case errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrLeaseHeld):
		s.log.Info().Err(err).Str("tenant_id", tenantID).Msg("Backup retry skipped")
	default:
		s.log.Error().Err(err).Str("tenant_id", tenantID).Int("attempt", r.attempt).Msg("Backup retry failed")
		s.scheduleRetry(tenantID, r.attempt)
	}
}
