// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/tomtom215/tenantvault/internal/docstore"
)

// leaseManager claims tenants in LeasesCollection so that scheduler
// instances sharing a document store do not back up the same tenant at once.
// A claim is {_id: tenantID, holder, expiresAt}; an expired claim may be
// taken over.
type leaseManager struct {
	store  docstore.Store
	holder string
	ttl    time.Duration
	clock  clock.Clock
}

func newLeaseManager(store docstore.Store, holder string, ttl time.Duration, clk clock.Clock) *leaseManager {
	if holder == "" {
		holder = defaultLeaseHolder()
	}
	return &leaseManager{store: store, holder: holder, ttl: ttl, clock: clk}
}

func defaultLeaseHolder() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "tenantvault"
	}
	return fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
}

func (l *leaseManager) claim(now time.Time, tenantID string) docstore.Document {
	return docstore.Document{
		docstore.IDField: tenantID,
		"holder":         l.holder,
		"acquiredAt":     now.UTC().Format(time.RFC3339Nano),
		"expiresAt":      now.Add(l.ttl).UTC().Format(time.RFC3339Nano),
	}
}

// acquire claims tenantID or returns ErrLeaseHeld.
func (l *leaseManager) acquire(ctx context.Context, tenantID string) error {
	now := l.clock.Now()
	err := l.store.InsertMany(ctx, LeasesCollection, []docstore.Document{l.claim(now, tenantID)})
	if !errors.Is(err, docstore.ErrDuplicateID) {
		return err
	}

	existing, err := l.store.Find(ctx, LeasesCollection, docstore.Filter{docstore.IDField: tenantID})
	if err != nil {
		return fmt.Errorf("read lease for %s: %w", tenantID, err)
	}
	if len(existing) > 0 {
		holder, _ := existing[0]["holder"].(string)
		expiresAt, _ := existing[0]["expiresAt"].(string)
		expiry, parseErr := time.Parse(time.RFC3339Nano, expiresAt)
		if holder != l.holder && parseErr == nil && expiry.After(now) {
			return fmt.Errorf("%w: %s until %s by %s", ErrLeaseHeld, tenantID, expiresAt, holder)
		}
		// Expired, unreadable or our own stale claim.
		if _, err := l.store.DeleteMany(ctx, LeasesCollection, docstore.Filter{
			docstore.IDField: tenantID,
			"holder":         holder,
		}); err != nil {
			return fmt.Errorf("clear expired lease for %s: %w", tenantID, err)
		}
	}

	err = l.store.InsertMany(ctx, LeasesCollection, []docstore.Document{l.claim(now, tenantID)})
	if errors.Is(err, docstore.ErrDuplicateID) {
		return fmt.Errorf("%w: %s", ErrLeaseHeld, tenantID)
	}
	return err
}

// release drops our claim. Claims taken over by another holder are kept.
func (l *leaseManager) release(ctx context.Context, tenantID string) error {
	_, err := l.store.DeleteMany(ctx, LeasesCollection, docstore.Filter{
		docstore.IDField: tenantID,
		"holder":         l.holder,
	})
	return err
}
