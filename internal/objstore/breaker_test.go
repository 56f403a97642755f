// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package objstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/tenantvault/internal/config"
)

func newTestBreaker(t *testing.T) *Breaker {
	t.Helper()
	return NewBreaker("test-"+t.Name(), config.BreakerConfig{
		MaxRequests:  1,
		Timeout:      time.Hour,
		MinRequests:  2,
		FailureRatio: 0.5,
	})
}

func TestBreaker_OpensOnFailures(t *testing.T) {
	t.Parallel()

	b := newTestBreaker(t)
	boom := errors.New("connection reset")

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Execute() #%d error = %v, want boom", i+1, err)
		}
	}
	if got := b.State(); got != "open" {
		t.Fatalf("State() = %q, want open", got)
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Execute() on open circuit error = %v, want ErrUnavailable", err)
	}
	if called {
		t.Error("open circuit ran the request")
	}
}

func TestBreaker_IgnoresNonEndpointErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"auth", fmt.Errorf("%w: expired", ErrUnauthorized)},
		{"not found", fmt.Errorf("%w: key", ErrNotFound)},
		{"too large", fmt.Errorf("read key: %w", ErrObjectTooLarge)},
		{"canceled", context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newTestBreaker(t)
			for i := 0; i < 5; i++ {
				if err := b.Execute(func() error { return tt.err }); !errors.Is(err, tt.err) {
					t.Fatalf("Execute() error = %v, want %v", err, tt.err)
				}
			}
			if got := b.State(); got != "closed" {
				t.Errorf("State() = %q, want closed", got)
			}
		})
	}
}
