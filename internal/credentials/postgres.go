// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the storage_credentials table the credential owner maintains.
// EnsureSchema creates it for development and tests.
const Schema = `
CREATE TABLE IF NOT EXISTS storage_credentials (
	tenant_id            TEXT PRIMARY KEY,
	access_key_id        TEXT NOT NULL,
	secret_access_key    TEXT NOT NULL,
	access_token         TEXT NOT NULL DEFAULT '',
	refresh_token        TEXT NOT NULL DEFAULT '',
	token_expiry         TIMESTAMPTZ,
	folder_hint          TEXT NOT NULL DEFAULT '',
	refresh_requested_at TIMESTAMPTZ,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const selectColumns = `tenant_id, access_key_id, secret_access_key, access_token, refresh_token,
	token_expiry, folder_hint, updated_at`

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads credentials from PostgreSQL.
type PostgresStore struct {
	db DB
}

// NewPostgresStore returns a store over db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPool opens and pings a connection pool. maxConns of zero keeps the pgx
// default.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse credentials db config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create credentials db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping credentials db: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the storage_credentials table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create storage_credentials: %w", err)
	}
	return nil
}

// Upsert stores c. The credential owner normally writes this table; Upsert
// exists for seeding and tests.
func (s *PostgresStore) Upsert(ctx context.Context, c *Credential) error {
	var expiry *time.Time
	if !c.TokenExpiry.IsZero() {
		expiry = &c.TokenExpiry
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO storage_credentials
			(tenant_id, access_key_id, secret_access_key, access_token, refresh_token, token_expiry, folder_hint, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (tenant_id) DO UPDATE SET
			access_key_id = EXCLUDED.access_key_id,
			secret_access_key = EXCLUDED.secret_access_key,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			folder_hint = EXCLUDED.folder_hint,
			refresh_requested_at = NULL,
			updated_at = now()`,
		c.TenantID, c.AccessKeyID, c.SecretAccessKey, c.AccessToken, c.RefreshToken, expiry, c.FolderHint,
	)
	if err != nil {
		return fmt.Errorf("upsert credential %s: %w", c.TenantID, err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, tenantID string) (*Credential, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM storage_credentials WHERE tenant_id = $1`, tenantID)
	c, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", tenantID, err)
	}
	return c, nil
}

// ListUsable implements Store.
func (s *PostgresStore) ListUsable(ctx context.Context, now time.Time) ([]Credential, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+selectColumns+` FROM storage_credentials
		 WHERE access_key_id <> '' AND secret_access_key <> ''
		   AND (token_expiry IS NULL OR token_expiry > $1)
		 ORDER BY tenant_id`, now)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

// Refresh implements Store. It flags the row so the credential owner rotates
// it, then returns the current value if that is still usable.
func (s *PostgresStore) Refresh(ctx context.Context, tenantID string) (*Credential, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE storage_credentials SET refresh_requested_at = now()
		 WHERE tenant_id = $1
		 RETURNING `+selectColumns, tenantID)
	c, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("refresh credential %s: %w", tenantID, err)
	}
	if !c.Usable(time.Now()) {
		return nil, ErrExpired
	}
	return c, nil
}

func scanCredential(row pgx.Row) (*Credential, error) {
	var (
		c      Credential
		expiry *time.Time
	)
	if err := row.Scan(&c.TenantID, &c.AccessKeyID, &c.SecretAccessKey, &c.AccessToken,
		&c.RefreshToken, &expiry, &c.FolderHint, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if expiry != nil {
		c.TokenExpiry = *expiry
	}
	return &c, nil
}
