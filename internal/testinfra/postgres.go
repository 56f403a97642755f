// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultPostgresImage is the PostgreSQL image used for credential store tests
	DefaultPostgresImage = "postgres:16-alpine"

	// DefaultPostgresPort is the PostgreSQL listen port inside the container
	DefaultPostgresPort = "5432"

	postgresUser     = "tenantvault"
	postgresPassword = "tenantvault"
	postgresDB       = "tenantvault"
)

// PostgresContainer represents a running PostgreSQL container for testing.
type PostgresContainer struct {
	testcontainers.Container
	DSN string
}

// PostgresOption configures the PostgreSQL container.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	image        string
	startTimeout time.Duration
}

// WithPostgresImage sets a custom PostgreSQL Docker image.
func WithPostgresImage(image string) PostgresOption {
	return func(c *postgresConfig) {
		c.image = image
	}
}

// NewPostgresContainer creates and starts a PostgreSQL container.
//
// Example:
//
//	pg, err := testinfra.NewPostgresContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, pg)
//
//	pool, err := credentials.NewPool(ctx, pg.DSN, 2)
func NewPostgresContainer(ctx context.Context, opts ...PostgresOption) (*PostgresContainer, error) {
	cfg := &postgresConfig{
		image:        DefaultPostgresImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultPostgresPort + "/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		// The server logs readiness once for the init run and once for real.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(DefaultPostgresPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, terminateOnError(ctx, container, fmt.Errorf("get container host: %w", err))
	}
	port, err := container.MappedPort(ctx, DefaultPostgresPort)
	if err != nil {
		return nil, terminateOnError(ctx, container, fmt.Errorf("get mapped port: %w", err))
	}

	return &PostgresContainer{
		Container: container,
		DSN: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			postgresUser, postgresPassword, host, port.Port(), postgresDB),
	}, nil
}
