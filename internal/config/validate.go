// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package config

import (
	"fmt"

	"github.com/tomtom215/tenantvault/internal/validation"
)

// Validate checks field constraints with the shared validator and then the
// cross-field rules struct tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateScheduler()
}

func (c *Config) validateCredentials() error {
	switch c.Credentials.Driver {
	case "postgres":
		if c.Credentials.DatabaseURL == "" {
			return fmt.Errorf("CREDENTIALS_DATABASE_URL is required when CREDENTIALS_DRIVER=postgres")
		}
	case "static":
		seen := make(map[string]bool, len(c.Credentials.Static))
		for _, sc := range c.Credentials.Static {
			if seen[sc.TenantID] {
				return fmt.Errorf("credentials.static: tenant %q listed twice", sc.TenantID)
			}
			seen[sc.TenantID] = true
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Driver == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.PollInterval > c.Scheduler.BackupInterval {
		return fmt.Errorf("BACKUP_POLL (%s) must not exceed BACKUP_INTERVAL (%s)",
			c.Scheduler.PollInterval, c.Scheduler.BackupInterval)
	}
	if c.Scheduler.LeaseTTL > 0 && c.Scheduler.LeaseTTL < c.Storage.RequestTimeout {
		return fmt.Errorf("BACKUP_LEASE_TTL (%s) must cover STORAGE_REQUEST_TIMEOUT (%s)",
			c.Scheduler.LeaseTTL, c.Storage.RequestTimeout)
	}
	if c.Backup.Upload.MaxInterval > 0 && c.Backup.Upload.MaxInterval < c.Backup.Upload.InitialInterval {
		return fmt.Errorf("BACKUP_UPLOAD_MAX_BACKOFF must be >= BACKUP_UPLOAD_BACKOFF")
	}
	return nil
}
