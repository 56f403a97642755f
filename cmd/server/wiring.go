// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/tenantvault/internal/api"
	"github.com/tomtom215/tenantvault/internal/backup"
	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/credentials"
	"github.com/tomtom215/tenantvault/internal/docstore"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/objstore"
)

// components holds everything main wires into the supervisor tree.
type components struct {
	store     *docstore.BadgerStore
	creds     credentials.Store
	breaker   *objstore.Breaker
	service   *backup.Service
	restorer  *backup.Restorer
	scheduler *backup.Scheduler
	server    *http.Server

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// buildComponents opens the stores and builds the backup stack. On error the
// resources acquired so far are released.
func buildComponents(ctx context.Context, cfg *config.Config) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.store, err = docstore.OpenBadger(docstore.Options{
		Path:       cfg.Store.Path,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
	})
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() {
		if err := c.store.Close(); err != nil {
			logging.Err(err).Msg("Error closing document store")
		}
	})

	c.creds, err = buildCredentialStore(ctx, &cfg.Credentials, c)
	if err != nil {
		return nil, err
	}

	var factory objstore.Factory
	factory, err = buildStorageFactory(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	c.breaker = objstore.NewBreaker("object-storage", cfg.Storage.Breaker)
	provider := objstore.NewProvider(factory, c.creds, objstore.ProviderConfig{
		RequestTimeout: cfg.Storage.RequestTimeout,
		Breaker:        c.breaker,
	})

	c.service, err = backup.NewService(c.store, c.creds, provider, backup.ServiceConfig{
		ObjectPrefix:   cfg.Storage.ObjectPrefix,
		Compression:    backup.Compression(cfg.Backup.Compression),
		RetentionCount: cfg.Backup.RetentionCount,
		Upload:         backup.RetryPolicyFromConfig(cfg.Backup.Upload),
		RecordFailures: cfg.Backup.RecordFailures,
	})
	if err != nil {
		return nil, fmt.Errorf("create backup service: %w", err)
	}
	c.restorer = backup.NewRestorer(c.service)
	c.scheduler = backup.NewScheduler(c.service, c.creds, schedulerConfig(&cfg.Scheduler))

	router := api.NewRouter(
		api.NewHandler(api.HandlerDeps{
			Backups:   c.service,
			Restorer:  c.restorer,
			Scheduler: c.scheduler,
			Storage:   c.breaker,
			Version:   version,
		}),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server)),
	)
	c.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return c, nil
}

func buildCredentialStore(ctx context.Context, cfg *config.CredentialsConfig, c *components) (credentials.Store, error) {
	switch cfg.Driver {
	case "static":
		creds := make([]credentials.Credential, 0, len(cfg.Static))
		for _, s := range cfg.Static {
			creds = append(creds, credentials.Credential{
				TenantID:        s.TenantID,
				AccessKeyID:     s.AccessKeyID,
				SecretAccessKey: s.SecretAccessKey,
				FolderHint:      s.FolderHint,
			})
		}
		logging.Info().Int("tenants", len(creds)).Msg("Using static credential store")
		return credentials.NewStaticStore(creds...), nil

	case "postgres":
		pool, err := credentials.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pool.Close)
		logging.Info().Int32("max_conns", pool.Config().MaxConns).Msg("Connected to credential store")
		return credentials.NewPostgresStore(pool), nil

	default:
		return nil, fmt.Errorf("unknown credentials driver %q", cfg.Driver)
	}
}

func buildStorageFactory(cfg *config.StorageConfig) (objstore.Factory, error) {
	switch cfg.Driver {
	case "s3":
		logging.Info().
			Str("endpoint", cfg.Endpoint).
			Str("region", cfg.Region).
			Str("bucket", cfg.Bucket).
			Msg("Using S3 object storage")
		return objstore.NewS3Factory(objstore.S3Config{
			Endpoint:     cfg.Endpoint,
			Region:       cfg.Region,
			Bucket:       cfg.Bucket,
			UsePathStyle: cfg.UsePathStyle,
		}), nil

	case "memory":
		logging.Warn().Msg("Using in-memory object storage; archives are lost on exit")
		return objstore.NewMemoryFactory(objstore.NewMemoryBucket()), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// schedulerConfig maps the config section. RetryDelay is a single fixed
// delay, so a failed tenant gets exactly one retry.
func schedulerConfig(cfg *config.SchedulerConfig) backup.SchedulerConfig {
	return backup.SchedulerConfig{
		PollInterval:   cfg.PollInterval,
		BackupInterval: cfg.BackupInterval,
		TenantDelay:    cfg.TenantDelay,
		Retry: backup.RetryPolicy{
			MaxAttempts:        2,
			InitialInterval:    cfg.RetryDelay,
			MaxInterval:        cfg.RetryDelay,
			BackoffCoefficient: 1,
		},
		LeaseTTL: cfg.LeaseTTL,
	}
}
