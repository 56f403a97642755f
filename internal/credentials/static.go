// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package credentials

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StaticStore serves credentials held in memory, typically declared in the
// config file. Tests use Put to rotate or expire credentials.
type StaticStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewStaticStore returns a store seeded with creds.
func NewStaticStore(creds ...Credential) *StaticStore {
	s := &StaticStore{creds: make(map[string]Credential, len(creds))}
	for _, c := range creds {
		s.creds[c.TenantID] = c
	}
	return s
}

// Put adds or replaces a tenant's credential.
func (s *StaticStore) Put(c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[c.TenantID] = c
}

// Delete removes a tenant's credential.
func (s *StaticStore) Delete(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, tenantID)
}

// Get implements Store.
func (s *StaticStore) Get(ctx context.Context, tenantID string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// ListUsable implements Store.
func (s *StaticStore) ListUsable(ctx context.Context, now time.Time) ([]Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Credential, 0, len(s.creds))
	for _, c := range s.creds {
		if c.Usable(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// Refresh implements Store. Static credentials cannot be renewed, so the
// current value is returned if it is still usable.
func (s *StaticStore) Refresh(ctx context.Context, tenantID string) (*Credential, error) {
	c, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !c.Usable(time.Now()) {
		return nil, ErrExpired
	}
	return c, nil
}
