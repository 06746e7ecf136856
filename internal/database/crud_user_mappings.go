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
	"strconv"
	"time"

	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/metrics"
	"github.com/tomtom215/historian/internal/models"
)

// GetOrCreateUserMapping returns the mapping for lookup, assigning the next
// internal user id when none exists. created is true for new mappings.
// A changed username is written back to an existing mapping.
func (db *DB) GetOrCreateUserMapping(ctx context.Context, lookup *models.UserMappingLookup) (mapping *models.UserMapping, created bool, err error) {
	if lookup.Source == "" || lookup.ServerID == "" || lookup.ExternalUserID == "" {
		return nil, false, fmt.Errorf("source, server_id and external_user_id are required")
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	existing, err := db.userMappingByExternal(ctx, lookup.Source, lookup.ServerID, lookup.ExternalUserID)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()

	if existing != nil {
		if lookup.Username != nil && (existing.Username == nil || *existing.Username != *lookup.Username) {
			if _, err := db.conn.ExecContext(ctx,
				`UPDATE user_mappings SET username = ?, updated_at = ? WHERE id = ?`,
				*lookup.Username, now, existing.ID,
			); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Int64("mapping_id", existing.ID).Msg("Failed to update user mapping username")
			} else {
				existing.Username = lookup.Username
				existing.UpdatedAt = now
			}
		}
		return existing, false, nil
	}

	// DuckDB has no autoincrement on primary keys.
	var nextID int64
	var nextInternal int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1, COALESCE(MAX(internal_user_id), 0) + 1 FROM user_mappings`,
	).Scan(&nextID, &nextInternal); err != nil {
		return nil, false, fmt.Errorf("failed to allocate user mapping ids: %w", err)
	}

	mapping = &models.UserMapping{
		ID:             nextID,
		Source:         lookup.Source,
		ServerID:       lookup.ServerID,
		ExternalUserID: lookup.ExternalUserID,
		InternalUserID: nextInternal,
		Username:       lookup.Username,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO user_mappings (
			id, source, server_id, external_user_id, internal_user_id, username, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mapping.ID, mapping.Source, mapping.ServerID, mapping.ExternalUserID, mapping.InternalUserID,
		optionalString(mapping.Username), mapping.CreatedAt, mapping.UpdatedAt,
	)
	metrics.RecordDBQuery("insert", "user_mappings", time.Since(start))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert user mapping: %w", err)
	}
	return mapping, true, nil
}

// ListUserMappings returns every mapping for serverID ordered by internal id.
func (db *DB) ListUserMappings(ctx context.Context, serverID string) ([]*models.UserMapping, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, source, server_id, external_user_id, internal_user_id, username, created_at, updated_at
		FROM user_mappings
		WHERE server_id = ?
		ORDER BY internal_user_id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user mappings: %w", err)
	}
	defer closeWithLog(rows, "user_mappings rows")

	var out []*models.UserMapping
	for rows.Next() {
		m, err := scanUserMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ResolveIdentity maps the session's source user onto an internal user id
// of the form "user-<n>", creating the mapping on first sight.
func (db *DB) ResolveIdentity(ctx context.Context, server *models.MediaServer, session *models.Session) (string, error) {
	external := session.UserID
	if external == "" {
		external = session.Username
	}
	if external == "" {
		return "", errors.New("session has no user to resolve")
	}

	var username *string
	if session.Username != "" {
		name := session.Username
		username = &name
	}

	mapping, _, err := db.GetOrCreateUserMapping(ctx, &models.UserMappingLookup{
		Source:         server.ServerType,
		ServerID:       server.ID,
		ExternalUserID: external,
		Username:       username,
	})
	if err != nil {
		return "", err
	}
	return "user-" + strconv.Itoa(mapping.InternalUserID), nil
}

func (db *DB) userMappingByExternal(ctx context.Context, source, serverID, externalUserID string) (*models.UserMapping, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, source, server_id, external_user_id, internal_user_id, username, created_at, updated_at
		FROM user_mappings
		WHERE source = ? AND server_id = ? AND external_user_id = ?`,
		source, serverID, externalUserID,
	)
	m, err := scanUserMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func scanUserMapping(row rowScanner) (*models.UserMapping, error) {
	var (
		m        models.UserMapping
		username sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Source, &m.ServerID, &m.ExternalUserID, &m.InternalUserID,
		&username, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user mapping: %w", err)
	}
	if username.Valid {
		m.Username = &username.String
	}
	return &m, nil
}
