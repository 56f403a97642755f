// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package config loads Tenantvault configuration.
//
// Values are layered with koanf: struct defaults first, then an optional YAML
// file, then environment variables. Only explicitly mapped environment
// variables are read; see envMappings in koanf.go.
package config

import "time"

// Config is the complete process configuration.
type Config struct {
	Logging     LoggingConfig     `koanf:"logging"`
	Server      ServerConfig      `koanf:"server"`
	Store       StoreConfig       `koanf:"store"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Storage     StorageConfig     `koanf:"storage"`
	Backup      BackupConfig      `koanf:"backup"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Supervisor  SupervisorConfig  `koanf:"supervisor"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig configures the HTTP control plane.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// CORSOrigins is empty by default, which disables cross-origin access.
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// StoreConfig configures the Badger document store.
type StoreConfig struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// CredentialsConfig selects where tenant storage credentials come from.
type CredentialsConfig struct {
	// Driver is postgres or static.
	Driver      string             `koanf:"driver" validate:"oneof=postgres static"`
	DatabaseURL string             `koanf:"database_url"`
	MaxConns    int32              `koanf:"max_conns" validate:"gte=0"`
	Static      []StaticCredential `koanf:"static" validate:"dive"`
}

// StaticCredential is a credential declared in the config file. Static
// credentials never expire.
type StaticCredential struct {
	TenantID        string `koanf:"tenant_id" validate:"required,tenantid"`
	AccessKeyID     string `koanf:"access_key_id" validate:"required"`
	SecretAccessKey string `koanf:"secret_access_key" validate:"required"`
	FolderHint      string `koanf:"folder_hint"`
}

// StorageConfig configures the object-storage provider.
type StorageConfig struct {
	// Driver is s3 or memory. The memory driver keeps blobs in process and is
	// meant for development.
	Driver         string        `koanf:"driver" validate:"oneof=s3 memory"`
	Endpoint       string        `koanf:"endpoint" validate:"omitempty,url"`
	Region         string        `koanf:"region"`
	Bucket         string        `koanf:"bucket"`
	UsePathStyle   bool          `koanf:"use_path_style"`
	ObjectPrefix   string        `koanf:"object_prefix" validate:"required,tenantid"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	Breaker        BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the storage provider.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests" validate:"gte=1"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests  uint32        `koanf:"min_requests" validate:"gte=1"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// BackupConfig configures archive creation and retention.
type BackupConfig struct {
	RetentionCount int    `koanf:"retention_count" validate:"gte=1"`
	Compression    string `koanf:"compression" validate:"oneof=zstd none"`
	// RecordFailures writes a failed metadata row when an upload gives up.
	RecordFailures bool              `koanf:"record_failures"`
	Upload         RetryPolicyConfig `koanf:"upload"`
}

// RetryPolicyConfig mirrors backup.RetryPolicy.
type RetryPolicyConfig struct {
	MaxAttempts        int           `koanf:"max_attempts" validate:"gte=1"`
	InitialInterval    time.Duration `koanf:"initial_interval" validate:"gte=0"`
	MaxInterval        time.Duration `koanf:"max_interval" validate:"gte=0"`
	BackoffCoefficient float64       `koanf:"backoff_coefficient" validate:"gte=1"`
}

// SchedulerConfig configures the global backup scheduler.
type SchedulerConfig struct {
	Enabled        bool          `koanf:"enabled"`
	PollInterval   time.Duration `koanf:"poll_interval" validate:"gt=0"`
	BackupInterval time.Duration `koanf:"backup_interval" validate:"gt=0"`
	TenantDelay    time.Duration `koanf:"tenant_delay" validate:"gte=0"`
	RetryDelay     time.Duration `koanf:"retry_delay" validate:"gt=0"`
	// LeaseTTL enables cross-process claims when positive.
	LeaseTTL time.Duration `koanf:"lease_ttl" validate:"gte=0"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
