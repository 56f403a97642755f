// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/juju/clock"

	"github.com/tomtom215/tenantvault/internal/config"
)

// RetryPolicy bounds a retried operation. It is used for archive uploads and
// for the scheduler's delayed retry of a failed tenant.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Values below 1 mean 1.
	MaxAttempts        int
	InitialInterval    time.Duration
	MaxInterval        time.Duration
	BackoffCoefficient float64
}

// DefaultUploadPolicy retries an upload three times with 1s, 2s backoff.
func DefaultUploadPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        3,
		InitialInterval:    time.Second,
		MaxInterval:        10 * time.Second,
		BackoffCoefficient: 2,
	}
}

// DefaultSweepRetryPolicy allows one retry five minutes after a failed
// scheduled backup.
func DefaultSweepRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        2,
		InitialInterval:    5 * time.Minute,
		MaxInterval:        5 * time.Minute,
		BackoffCoefficient: 1,
	}
}

// RetryPolicyFromConfig converts the config form.
func RetryPolicyFromConfig(c config.RetryPolicyConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        c.MaxAttempts,
		InitialInterval:    c.InitialInterval,
		MaxInterval:        c.MaxInterval,
		BackoffCoefficient: c.BackoffCoefficient,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait after the given failed attempt (1-based):
// InitialInterval * BackoffCoefficient^(attempt-1), capped at MaxInterval.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	coef := p.BackoffCoefficient
	if coef < 1 {
		coef = 1
	}
	d := time.Duration(float64(p.InitialInterval) * math.Pow(coef, float64(attempt-1)))
	if p.MaxInterval > 0 && (d > p.MaxInterval || d < 0) {
		d = p.MaxInterval
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Waits use clk so tests can advance time. Context errors
// are never retried. Do returns the number of attempts made and fn's last
// error.
func (p RetryPolicy) Do(ctx context.Context, clk clock.Clock, fn func(ctx context.Context, attempt int) error, retryable func(error) bool) (int, error) {
	maxAttempts := p.attempts()
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt >= maxAttempts || isContextError(err) || (retryable != nil && !retryable(err)) {
			return attempt, err
		}

		select {
		case <-ctx.Done():
			return attempt, errors.Join(err, ctx.Err())
		case <-clk.After(p.Delay(attempt)):
		}
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
