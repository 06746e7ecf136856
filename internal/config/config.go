// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package config loads the history import service configuration.
//
// Values are layered with koanf: struct defaults, then an optional YAML
// file, then a fixed table of environment variables. See LoadWithKoanf.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	JobStore JobStoreConfig `koanf:"job_store"`
	Import   ImportConfig   `koanf:"import"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Events   EventsConfig   `koanf:"events"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`

	// Servers are registered at startup when not already present.
	Servers []SeedServer `koanf:"servers"`
}

// DatabaseConfig configures the DuckDB session store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// JobStoreConfig configures the BadgerDB job record store.
type JobStoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// FailedRetention is how long failed jobs are kept. Zero keeps them forever.
	FailedRetention time.Duration `koanf:"failed_retention"`
	CleanupCron     string        `koanf:"cleanup_cron"`
}

// ImportConfig tunes the importers and the background worker pool.
type ImportConfig struct {
	PageSize         int `koanf:"page_size"`
	ProgressInterval int `koanf:"progress_interval"`
	MaxDaysBack      int `koanf:"max_days_back"`

	// MaxConcurrentJobs of 0 means every submitted job runs immediately.
	MaxConcurrentJobs  int  `koanf:"max_concurrent_jobs"`
	SerializePerServer bool `koanf:"serialize_per_server"`

	// ResolveIdentities maps each source user onto a stable internal id.
	ResolveIdentities bool `koanf:"resolve_identities"`
}

// UpstreamConfig applies to every media server HTTP client.
type UpstreamConfig struct {
	Timeout               time.Duration `koanf:"timeout"`
	RequestsPerSecond     float64       `koanf:"requests_per_second"`
	Burst                 int           `koanf:"burst"`
	CircuitBreakerEnabled bool          `koanf:"circuit_breaker_enabled"`
}

// EventsConfig selects the job event transport.
type EventsConfig struct {
	// NATSURL publishes events to a NATS server. Empty keeps them in process.
	NATSURL       string        `koanf:"nats_url"`
	Topic         string        `koanf:"topic"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins enables CORS for the listed origins. Empty disables it.
	CORSOrigins []string `koanf:"cors_origins"`
}

// SecurityConfig holds secrets.
type SecurityConfig struct {
	// EncryptionSecret derives the key used to encrypt stored server tokens.
	EncryptionSecret string `koanf:"encryption_secret"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SeedServer is a media server declared in the config file.
type SeedServer struct {
	ID         string `koanf:"id" validate:"required,max=64"`
	Name       string `koanf:"name" validate:"required,max=100"`
	ServerType string `koanf:"server_type" validate:"required,server_type"`
	URL        string `koanf:"url" validate:"required,url"`
	Token      string `koanf:"token" validate:"required"`
}
