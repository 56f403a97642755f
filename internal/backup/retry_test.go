// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
)

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: 5 * time.Second, BackoffCoefficient: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{30, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	if got := DefaultSweepRetryPolicy().Delay(1); got != 5*time.Minute {
		t.Errorf("sweep retry delay = %v, want 5m", got)
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, BackoffCoefficient: 1}

	tests := []struct {
		name         string
		failures     int
		err          error
		retryable    func(error) bool
		wantAttempts int
		wantErr      bool
	}{
		{"first try", 0, errInjected, nil, 1, false},
		{"recovers", 2, errInjected, nil, 3, false},
		{"exhausted", 5, errInjected, nil, 3, true},
		{"not retryable", 5, errInjected, func(error) bool { return false }, 1, true},
		{"context error", 5, context.Canceled, nil, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			attempts, err := p.Do(context.Background(), clock.WallClock, func(_ context.Context, attempt int) error {
				calls++
				if attempt != calls {
					t.Errorf("attempt = %d, want %d", attempt, calls)
				}
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			}, tt.retryable)

			if (err != nil) != tt.wantErr {
				t.Errorf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
		})
	}
}

func TestRetryPolicy_DoWaitsOnClock(t *testing.T) {
	t.Parallel()

	clk := testclock.NewClock(testEpoch)
	p := RetryPolicy{MaxAttempts: 2, InitialInterval: time.Minute, MaxInterval: time.Minute, BackoffCoefficient: 1}

	done := make(chan error, 1)
	go func() {
		_, err := p.Do(context.Background(), clk, func(_ context.Context, attempt int) error {
			if attempt == 1 {
				return errInjected
			}
			return nil
		}, nil)
		done <- err
	}()

	if err := clk.WaitAdvance(time.Minute, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance() error: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Do() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do() did not return after the backoff elapsed")
	}
}

func TestRetryPolicy_DoStopsOnCancel(t *testing.T) {
	t.Parallel()

	clk := testclock.NewClock(testEpoch)
	p := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Hour, MaxInterval: time.Hour, BackoffCoefficient: 1}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.Do(ctx, clk, func(context.Context, int) error { return errInjected }, nil)
		done <- err
	}()

	if err := clk.WaitAdvance(0, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance() error: %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) || !errors.Is(err, errInjected) {
			t.Errorf("Do() error = %v, want canceled and injected", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do() did not return after cancel")
	}
}
