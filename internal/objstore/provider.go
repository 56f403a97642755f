// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package objstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/tenantvault/internal/credentials"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
)

// Provider hands out tenant clients that share one breaker.
type Provider struct {
	factory        Factory
	refresher      credentials.Store
	breaker        *Breaker
	requestTimeout time.Duration
}

// ProviderConfig configures NewProvider.
type ProviderConfig struct {
	// RequestTimeout bounds each storage call. Zero disables the bound.
	RequestTimeout time.Duration
	// Breaker may be nil to send every request.
	Breaker *Breaker
}

// NewProvider wraps factory. refresher is asked for a new credential when the
// provider rejects the current one.
func NewProvider(factory Factory, refresher credentials.Store, cfg ProviderConfig) *Provider {
	return &Provider{
		factory:        factory,
		refresher:      refresher,
		breaker:        cfg.Breaker,
		requestTimeout: cfg.RequestTimeout,
	}
}

// Client returns a client for cred.
func (p *Provider) Client(ctx context.Context, cred *credentials.Credential) (Client, error) {
	inner, err := p.factory.ClientFor(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("build storage client for %s: %w", cred.TenantID, err)
	}
	return &tenantClient{p: p, tenantID: cred.TenantID, inner: inner}, nil
}

// tenantClient retries a call once with a refreshed credential after an auth
// rejection. A refresh that fails leaves the original error in place.
type tenantClient struct {
	p        *Provider
	tenantID string

	mu    sync.Mutex
	inner Client
}

func (c *tenantClient) current() Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner
}

func (c *tenantClient) do(ctx context.Context, op string, fn func(ctx context.Context, cl Client) error) error {
	err := c.attempt(ctx, op, c.current(), fn)
	if !IsAuthError(err) || c.p.refresher == nil {
		return err
	}

	log := logging.Ctx(ctx).With().Str("tenant_id", c.tenantID).Str("operation", op).Logger()
	fresh, refreshErr := c.p.refresher.Refresh(ctx, c.tenantID)
	metrics.RecordCredentialRefresh(refreshErr)
	if refreshErr != nil {
		log.Warn().Err(refreshErr).Msg("Credential refresh failed")
		return err
	}
	rebuilt, buildErr := c.p.factory.ClientFor(ctx, fresh)
	if buildErr != nil {
		log.Warn().Err(buildErr).Msg("Rebuilding storage client after refresh failed")
		return err
	}
	c.mu.Lock()
	c.inner = rebuilt
	c.mu.Unlock()

	log.Info().Msg("Credential refreshed, retrying storage request")
	return c.attempt(ctx, op, rebuilt, fn)
}

func (c *tenantClient) attempt(ctx context.Context, op string, cl Client, fn func(ctx context.Context, cl Client) error) error {
	if c.p.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.p.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	call := func() error { return fn(ctx, cl) }
	var err error
	if c.p.breaker != nil {
		err = c.p.breaker.Execute(call)
	} else {
		err = call()
	}
	metrics.RecordStorageRequest(op, time.Since(start), err, resultLabel)
	return err
}

func (c *tenantClient) Upload(ctx context.Context, name string, data []byte, contentType string) (Object, error) {
	var obj Object
	err := c.do(ctx, "upload", func(ctx context.Context, cl Client) error {
		var err error
		obj, err = cl.Upload(ctx, name, data, contentType)
		return err
	})
	return obj, err
}

func (c *tenantClient) Find(ctx context.Context, q Query) ([]Object, error) {
	var objs []Object
	err := c.do(ctx, "find", func(ctx context.Context, cl Client) error {
		var err error
		objs, err = cl.Find(ctx, q)
		return err
	})
	return objs, err
}

func (c *tenantClient) Download(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := c.do(ctx, "download", func(ctx context.Context, cl Client) error {
		var err error
		data, err = cl.Download(ctx, id)
		return err
	})
	return data, err
}

func (c *tenantClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", func(ctx context.Context, cl Client) error {
		return cl.Delete(ctx, id)
	})
}
