// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"tenantvault.yaml",
	"tenantvault.yml",
	"/etc/tenantvault/config.yaml",
	"/etc/tenantvault/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:            "0.0.0.0:8650",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute, // restores run synchronously
			ShutdownTimeout: 10 * time.Second,

			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		Store: StoreConfig{
			Path: "/data/tenantvault",
		},
		Credentials: CredentialsConfig{
			Driver:   "postgres",
			MaxConns: 4,
		},
		Storage: StorageConfig{
			Driver:         "s3",
			Region:         "us-east-1",
			ObjectPrefix:   "tenantvault",
			RequestTimeout: 2 * time.Minute,
			Breaker: BreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      2 * time.Minute,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Backup: BackupConfig{
			RetentionCount: 5,
			Compression:    "zstd",
			RecordFailures: true,
			Upload: RetryPolicyConfig{
				MaxAttempts:        3,
				InitialInterval:    time.Second,
				MaxInterval:        10 * time.Second,
				BackoffCoefficient: 2.0,
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			PollInterval:   30 * time.Second,
			BackupInterval: 30 * time.Minute,
			TenantDelay:    2 * time.Second,
			RetryDelay:     5 * time.Minute,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the config file found by
// findConfigFile, and mapped environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips the
// file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// BACKUP_RETENTION_COUNT -> backup.retention_count
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var envMappings = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"http_addr":             "server.addr",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"rate_limit_disabled":   "server.rate_limit_disabled",

	"store_path":        "store.path",
	"store_in_memory":   "store.in_memory",
	"store_sync_writes": "store.sync_writes",

	"credentials_driver":       "credentials.driver",
	"credentials_database_url": "credentials.database_url",
	"credentials_max_conns":    "credentials.max_conns",

	"storage_driver":          "storage.driver",
	"s3_endpoint":             "storage.endpoint",
	"s3_region":               "storage.region",
	"s3_bucket":               "storage.bucket",
	"s3_use_path_style":       "storage.use_path_style",
	"storage_object_prefix":   "storage.object_prefix",
	"storage_request_timeout": "storage.request_timeout",

	"backup_retention_count":    "backup.retention_count",
	"backup_compression":        "backup.compression",
	"backup_record_failures":    "backup.record_failures",
	"backup_upload_attempts":    "backup.upload.max_attempts",
	"backup_upload_backoff":     "backup.upload.initial_interval",
	"backup_upload_max_backoff": "backup.upload.max_interval",

	"scheduler_enabled":   "scheduler.enabled",
	"backup_poll":         "scheduler.poll_interval",
	"backup_interval":     "scheduler.backup_interval",
	"backup_tenant_delay": "scheduler.tenant_delay",
	"backup_retry_delay":  "scheduler.retry_delay",
	"backup_lease_ttl":    "scheduler.lease_ttl",
}

// envTransformFunc maps an environment variable to its koanf path. Unmapped
// variables return "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
