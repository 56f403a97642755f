// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/supervisor"
	"github.com/tomtom215/tenantvault/internal/supervisor/services"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Err(err).Msg("Tenantvault exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("version", version).
		Str("credentials_driver", cfg.Credentials.Driver).
		Str("storage_driver", cfg.Storage.Driver).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Starting Tenantvault")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	tree, err := supervisor.NewSupervisorTree(supervisorLogger(), supervisor.TreeConfigFromConfig(cfg.Supervisor))
	if err != nil {
		return err
	}
	if cfg.Scheduler.Enabled {
		tree.AddBackupService(services.NewBackupSchedulerService(c.scheduler))
	} else {
		logging.Warn().Msg("Backup scheduler disabled; backups run only on request")
	}
	tree.AddAPIService(services.NewHTTPServerService(c.server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree")
	err = tree.Serve(ctx)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Tenantvault stopped")
	return nil
}

// supervisorLogger routes suture events through zerolog, tagged with their
// component.
func supervisorLogger() *slog.Logger {
	return slog.New(logging.NewSlogHandlerWithLogger(logging.WithComponent("supervisor")))
}
