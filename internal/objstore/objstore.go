// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package objstore talks to the object-storage provider that holds tenant
// archives.
//
// A Factory builds a Client from one tenant's credential. Provider wraps those
// clients with a shared circuit breaker, per-request timeouts and a single
// credential refresh when the provider rejects the current credential.
package objstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/tenantvault/internal/credentials"
)

var (
	// ErrNotFound means the object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrUnauthorized means the provider rejected the credential.
	ErrUnauthorized = errors.New("object storage rejected credential")

	// ErrObjectTooLarge means a download exceeded MaxObjectSize.
	ErrObjectTooLarge = errors.New("object exceeds size limit")
)

// MaxObjectSize bounds a single download.
const MaxObjectSize = 1 << 30

// Object describes one stored blob.
type Object struct {
	// ID addresses the blob for Download and Delete.
	ID string
	// Name is the name the blob was uploaded under, without the tenant folder.
	Name         string
	Size         int64
	LastModified time.Time
}

// Query selects blobs by exact Name or by NamePrefix. An empty Query lists the
// whole tenant folder.
type Query struct {
	Name       string
	NamePrefix string
}

// Matches reports whether name satisfies q.
func (q Query) Matches(name string) bool {
	if q.Name != "" && name != q.Name {
		return false
	}
	return strings.HasPrefix(name, q.NamePrefix)
}

// Client is one tenant's view of the object store.
type Client interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (Object, error)
	Find(ctx context.Context, q Query) ([]Object, error)
	Download(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// Factory builds clients bound to a credential.
type Factory interface {
	ClientFor(ctx context.Context, cred *credentials.Credential) (Client, error)
}

// IsAuthError reports whether err means the credential was rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// folderPrefix turns a credential folder hint into a key prefix.
func folderPrefix(hint string) string {
	hint = strings.Trim(hint, "/")
	if hint == "" {
		return ""
	}
	return hint + "/"
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// resultLabel maps an error to the storage request metric result.
func resultLabel(err error) string {
	switch {
	case IsAuthError(err):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case isContextError(err):
		return "canceled"
	default:
		return "error"
	}
}
