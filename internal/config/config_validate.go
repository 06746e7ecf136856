// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/historian/internal/validation"
)

// minEncryptionSecretLength applies only when a secret is configured.
const minEncryptionSecretLength = 32

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateDatabase,
		c.validateJobStore,
		c.validateImport,
		c.validateUpstream,
		c.validateEvents,
		c.validateServer,
		c.validateSecurity,
		c.validateLogging,
		c.validateSeedServers,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateJobStore() error {
	if !c.JobStore.InMemory && c.JobStore.Path == "" {
		return fmt.Errorf("job_store.path is required unless job_store.in_memory is set")
	}
	if c.JobStore.FailedRetention < 0 {
		return fmt.Errorf("job_store.failed_retention must be >= 0, got %s", c.JobStore.FailedRetention)
	}
	if c.JobStore.FailedRetention > 0 && strings.TrimSpace(c.JobStore.CleanupCron) == "" {
		return fmt.Errorf("job_store.cleanup_cron is required when failed_retention is set")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Import.PageSize < 1 || c.Import.PageSize > 1000 {
		return fmt.Errorf("import.page_size must be between 1 and 1000, got %d", c.Import.PageSize)
	}
	if c.Import.ProgressInterval < 1 {
		return fmt.Errorf("import.progress_interval must be >= 1, got %d", c.Import.ProgressInterval)
	}
	if c.Import.MaxDaysBack < 1 {
		return fmt.Errorf("import.max_days_back must be >= 1, got %d", c.Import.MaxDaysBack)
	}
	if c.Import.MaxConcurrentJobs < 0 {
		return fmt.Errorf("import.max_concurrent_jobs must be >= 0, got %d", c.Import.MaxConcurrentJobs)
	}
	return nil
}

func (c *Config) validateUpstream() error {
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if c.Upstream.RequestsPerSecond <= 0 {
		return fmt.Errorf("upstream.requests_per_second must be positive")
	}
	if c.Upstream.Burst < 1 {
		return fmt.Errorf("upstream.burst must be >= 1, got %d", c.Upstream.Burst)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if strings.TrimSpace(c.Events.Topic) == "" {
		return fmt.Errorf("events.topic is required")
	}
	if url := c.Events.NATSURL; url != "" && !strings.HasPrefix(url, "nats://") && !strings.HasPrefix(url, "tls://") {
		return fmt.Errorf("events.nats_url must use nats:// or tls://, got %q", url)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitRequests < 1 {
		return fmt.Errorf("server.rate_limit_requests must be >= 1")
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	secret := c.Security.EncryptionSecret
	if secret != "" && len(secret) < minEncryptionSecretLength {
		return fmt.Errorf("security.encryption_secret must be at least %d characters", minEncryptionSecretLength)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSeedServers() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for i := range c.Servers {
		s := &c.Servers[i]
		if err := validation.ValidateStruct(s); err != nil {
			return fmt.Errorf("servers[%d]: %w", i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("servers[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}
