// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"context"
	"strings"
	"sync"

	"github.com/tomtom215/historian/internal/app"
	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/database"
	"github.com/tomtom215/historian/internal/dispatch"
	"github.com/tomtom215/historian/internal/jobs"
	"github.com/tomtom215/historian/internal/logging"
)

// commandContext loads configuration and opens the database once per
// invocation.
type commandContext struct {
	configFlag string

	// logLevel overrides logging.level from the config file when set.
	logLevel string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	db *database.DB
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.config != nil {
			return
		}
		cfg, err := config.LoadFile(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})
		c.config = cfg
	})
	if c.configErr == nil && c.logLevel != "" {
		logging.SetLevelString(c.logLevel)
	}
	return c.config, c.configErr
}

func (c *commandContext) database(ctx context.Context) (*database.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// dispatcher builds a dispatcher for synchronous runs. Jobs are never
// submitted from the CLI, so the tracker is in memory.
func (c *commandContext) dispatcher(ctx context.Context) (*dispatch.Service, error) {
	db, err := c.database(ctx)
	if err != nil {
		return nil, err
	}
	cfg, _ := c.ensureConfig()
	return app.NewDispatcher(cfg, db, jobs.NewTracker(jobs.NewMemoryStore()), app.NewPool(cfg)), nil
}

func (c *commandContext) close() {
	if c.db == nil {
		return
	}
	if err := c.db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing database")
	}
	c.db = nil
}
