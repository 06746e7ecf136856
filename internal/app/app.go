// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/database"
	"github.com/tomtom215/historian/internal/dispatch"
	"github.com/tomtom215/historian/internal/history"
	"github.com/tomtom215/historian/internal/jobs"
	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/models"
	"github.com/tomtom215/historian/internal/upstream"
)

// OpenDatabase opens the session store, installs the token cipher when a
// secret is configured and registers the configured seed servers.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Security.EncryptionSecret != "" {
		cipher, err := config.NewCredentialEncryptor(cfg.Security.EncryptionSecret)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("credential cipher: %w", err)
		}
		db.SetCredentialCipher(cipher)
	}

	if _, err := SeedServers(ctx, db, cfg.Servers); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SeedServers registers seeds that are not yet present and returns how many
// were added. Existing registrations are left untouched.
func SeedServers(ctx context.Context, db *database.DB, seeds []config.SeedServer) (int, error) {
	added := 0
	for _, s := range seeds {
		err := db.CreateServer(ctx, &models.MediaServer{
			ID:         s.ID,
			Name:       s.Name,
			ServerType: s.ServerType,
			URL:        s.URL,
			Token:      s.Token,
		})
		switch {
		case errors.Is(err, database.ErrServerIDConflict):
			continue
		case err != nil:
			return added, fmt.Errorf("seed server %s: %w", s.ID, err)
		}
		added++
		logging.Info().Str("server_id", s.ID).Str("server_type", s.ServerType).
			Str("url", s.URL).Msg("Registered media server from config")
	}
	return added, nil
}

// NewDispatcher builds the import dispatcher with one importer per server
// type. runner executes asynchronous jobs.
func NewDispatcher(cfg *config.Config, db *database.DB, tracker *jobs.Tracker, runner dispatch.TaskRunner) *dispatch.Service {
	registry := upstream.NewRegistry(upstream.OptionsFromConfig(&cfg.Upstream))

	var resolver history.IdentityResolver
	if cfg.Import.ResolveIdentities {
		resolver = db
	}

	return dispatch.NewService(db, tracker, runner, dispatch.NewImporters(registry, resolver), dispatch.Options{
		PageSize:         cfg.Import.PageSize,
		ProgressInterval: cfg.Import.ProgressInterval,
		MaxDaysBack:      cfg.Import.MaxDaysBack,
	})
}

// NewPool builds the background worker pool from the import settings.
func NewPool(cfg *config.Config) *dispatch.Pool {
	return dispatch.NewPool(dispatch.PoolConfig{
		MaxConcurrent:  cfg.Import.MaxConcurrentJobs,
		SerializeByKey: cfg.Import.SerializePerServer,
	})
}
