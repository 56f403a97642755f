// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package credentials reads per-tenant object-storage credentials. Tenantvault
// never issues or rotates credentials itself; it only consumes what the
// credential owner has stored and can ask for a refresh.
package credentials

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the tenant has no stored credential.
	ErrNotFound = errors.New("credential not found")

	// ErrExpired means the stored credential is past its expiry.
	ErrExpired = errors.New("credential expired")
)

// Credential is one tenant's access to the object-storage provider.
type Credential struct {
	TenantID        string
	AccessKeyID     string
	SecretAccessKey string
	// AccessToken is the provider session token, empty for long-lived keys.
	AccessToken  string
	RefreshToken string
	// TokenExpiry is zero for credentials that never expire.
	TokenExpiry time.Time
	// FolderHint is the key prefix the tenant's archives are written under.
	FolderHint string
	UpdatedAt  time.Time
}

// Usable reports whether the credential can be used at now.
func (c *Credential) Usable(now time.Time) bool {
	if c == nil || c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return false
	}
	return c.TokenExpiry.IsZero() || c.TokenExpiry.After(now)
}

// Store is the read side of the credential store.
type Store interface {
	// Get returns the tenant's credential or ErrNotFound. The credential is
	// returned even when expired; callers check Usable.
	Get(ctx context.Context, tenantID string) (*Credential, error)

	// ListUsable returns every credential usable at now, ordered by tenant.
	ListUsable(ctx context.Context, now time.Time) ([]Credential, error)

	// Refresh asks for a fresh credential after the provider rejected the
	// current one. It returns ErrExpired when nothing newer is available.
	Refresh(ctx context.Context, tenantID string) (*Credential, error)
}
