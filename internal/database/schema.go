// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS media_servers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		server_type TEXT NOT NULL,
		url TEXT NOT NULL,
		token_encrypted TEXT NOT NULL,
		token_is_encrypted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,

	// (session_id, server_id) is the dedup identity. imported_from duplicates
	// metadata.imported_from so imported rows can be selected without JSON
	// functions.
	`CREATE TABLE IF NOT EXISTS media_sessions (
		session_id TEXT NOT NULL,
		server_id TEXT NOT NULL,
		user_id TEXT,
		username TEXT NOT NULL,
		media_id TEXT,
		media_title TEXT NOT NULL,
		media_type TEXT NOT NULL,
		series_name TEXT,
		season_number INTEGER,
		episode_number INTEGER,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		device TEXT,
		client TEXT,
		platform TEXT,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		imported_from TEXT,
		metadata TEXT,
		PRIMARY KEY (session_id, server_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_media_sessions_server_import
		ON media_sessions (server_id, imported_from)`,

	`CREATE TABLE IF NOT EXISTS user_mappings (
		id BIGINT PRIMARY KEY,
		source TEXT NOT NULL,
		server_id TEXT NOT NULL,
		external_user_id TEXT NOT NULL,
		internal_user_id INTEGER NOT NULL,
		username TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (source, server_id, external_user_id)
	)`,
}

func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
