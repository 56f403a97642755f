// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package objstore

import (
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
)

// ErrUnavailable wraps requests the breaker refused to send.
var ErrUnavailable = errors.New("object storage unavailable")

// Breaker guards one storage endpoint. All tenants share it, so a provider
// outage stops every backup from hammering the endpoint.
//
// Credential rejections, missing objects and canceled contexts are not
// counted as failures: they say nothing about the endpoint's health.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[struct{}]
	name string
}

// NewBreaker creates a breaker. With the default configuration it:
// - allows 3 requests in half-open state
// - resets counts every minute while closed
// - waits 2 minutes before probing an open endpoint
// - opens at a 60% failure rate over at least 10 requests
func NewBreaker(name string, cfg config.BreakerConfig) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio

			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: isBreakerSuccess,
	})

	return &Breaker{cb: cb, name: name}
}

func isBreakerSuccess(err error) bool {
	return err == nil || IsAuthError(err) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrObjectTooLarge) || isContextError(err)
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
		return nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		logging.Warn().Str("breaker", b.name).Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case isBreakerSuccess(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		return err
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		counts := b.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
		return err
	}
}

// State returns closed, half-open or open.
func (b *Breaker) State() string {
	return stateToString(b.cb.State())
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
