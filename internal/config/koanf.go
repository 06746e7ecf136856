// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

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

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/historian/config.yaml",
	"/etc/historian/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/historian.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		JobStore: JobStoreConfig{
			Path:            "/data/jobs",
			InMemory:        false,
			FailedRetention: 30 * 24 * time.Hour,
			CleanupCron:     "0 * * * *",
		},
		Import: ImportConfig{
			PageSize:           100,
			ProgressInterval:   25,
			MaxDaysBack:        365,
			MaxConcurrentJobs:  0,
			SerializePerServer: true,
			ResolveIdentities:  true,
		},
		Upstream: UpstreamConfig{
			Timeout:               30 * time.Second,
			RequestsPerSecond:     10,
			Burst:                 5,
			CircuitBreakerEnabled: true,
		},
		Events: EventsConfig{
			Topic:         "history.import.jobs",
			MaxReconnects: 60,
			ReconnectWait: 2 * time.Second,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              3858,
			Timeout:           30 * time.Second,
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults
// and validates the result.
func LoadWithKoanf() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile is LoadWithKoanf with an explicit config file path.
// An empty path falls back to the default search.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = findConfigFile()
	}
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

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

// envMappings is the complete set of recognized environment variables.
// Anything not listed is ignored.
var envMappings = map[string]string{
	"history_db_path":   "database.path",
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"job_store_path":       "job_store.path",
	"job_store_in_memory":  "job_store.in_memory",
	"failed_job_retention": "job_store.failed_retention",
	"job_cleanup_cron":     "job_store.cleanup_cron",

	"import_page_size":            "import.page_size",
	"import_progress_interval":    "import.progress_interval",
	"import_max_days_back":        "import.max_days_back",
	"import_max_concurrent_jobs":  "import.max_concurrent_jobs",
	"import_serialize_per_server": "import.serialize_per_server",
	"import_resolve_identities":   "import.resolve_identities",

	"upstream_timeout":             "upstream.timeout",
	"upstream_requests_per_second": "upstream.requests_per_second",
	"upstream_burst":               "upstream.burst",
	"upstream_circuit_breaker":     "upstream.circuit_breaker_enabled",

	"nats_url":            "events.nats_url",
	"events_topic":        "events.topic",
	"nats_max_reconnects": "events.max_reconnects",
	"nats_reconnect_wait": "events.reconnect_wait",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",

	"encryption_secret": "security.encryption_secret",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps HTTP_PORT to server.port and so on. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
