// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/historian/internal/models"
)

// CreateServer registers a media server. A missing ID is generated.
// Returns ErrServerIDConflict when the ID is taken.
func (db *DB) CreateServer(ctx context.Context, server *models.MediaServer) error {
	if server.ID == "" {
		server.ID = uuid.New().String()
	}
	if server.CreatedAt.IsZero() {
		server.CreatedAt = time.Now().UTC()
	}

	token := server.Token
	encrypted := false
	if db.cipher != nil && token != "" {
		sealed, err := db.cipher.Encrypt(token)
		if err != nil {
			return fmt.Errorf("failed to encrypt server token: %w", err)
		}
		token = sealed
		encrypted = true
	}

	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO media_servers (id, name, server_type, url, token_encrypted, token_is_encrypted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		server.ID, server.Name, server.ServerType, server.URL, token, encrypted, server.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media server: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrServerIDConflict
	}
	return nil
}

// GetServer returns the server with the given ID, or ErrServerNotFound.
func (db *DB) GetServer(ctx context.Context, id string) (*models.MediaServer, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, server_type, url, token_encrypted, token_is_encrypted, created_at
		FROM media_servers WHERE id = ?`, id)

	server, err := db.scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media server %s: %w", id, err)
	}
	return server, nil
}

// ListServers returns all registered servers ordered by name.
func (db *DB) ListServers(ctx context.Context) ([]*models.MediaServer, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, server_type, url, token_encrypted, token_is_encrypted, created_at
		FROM media_servers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list media servers: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var servers []*models.MediaServer
	for rows.Next() {
		server, err := db.scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media server: %w", err)
		}
		servers = append(servers, server)
	}
	return servers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanServer(row rowScanner) (*models.MediaServer, error) {
	var (
		s         models.MediaServer
		token     string
		encrypted bool
	)
	if err := row.Scan(&s.ID, &s.Name, &s.ServerType, &s.URL, &token, &encrypted, &s.CreatedAt); err != nil {
		return nil, err
	}

	if encrypted {
		if db.cipher == nil {
			return nil, fmt.Errorf("server %s token is encrypted but no encryption secret is configured", s.ID)
		}
		plain, err := db.cipher.Decrypt(token)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token for server %s: %w", s.ID, err)
		}
		token = plain
	}
	s.Token = token
	return &s, nil
}
