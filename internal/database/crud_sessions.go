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
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/historian/internal/metrics"
	"github.com/tomtom215/historian/internal/models"
)

// InsertSession stores a session unless one with the same
// (session_id, server_id) already exists. stored is false for duplicates.
func (db *DB) InsertSession(ctx context.Context, s *models.Session) (stored bool, err error) {
	if s.SessionID == "" || s.ServerID == "" {
		return false, fmt.Errorf("session_id and server_id are required")
	}

	var metadata any
	if len(s.Metadata) > 0 {
		raw, err := json.Marshal(s.Metadata)
		if err != nil {
			return false, fmt.Errorf("failed to marshal session metadata: %w", err)
		}
		metadata = string(raw)
	}

	var endedAt any
	if !s.EndedAt.IsZero() {
		endedAt = s.EndedAt.UTC()
	}

	start := time.Now()
	db.writeMu.Lock()
	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO media_sessions (
			session_id, server_id, user_id, username,
			media_id, media_title, media_type,
			series_name, season_number, episode_number,
			started_at, ended_at, duration_ms,
			device, client, platform, active,
			imported_from, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		s.SessionID, s.ServerID, nullString(s.UserID), s.Username,
		nullString(s.MediaID), s.MediaTitle, s.MediaType,
		optionalString(s.SeriesName), optionalInt(s.SeasonNumber), optionalInt(s.EpisodeNumber),
		s.StartedAt.UTC(), endedAt, s.DurationMs,
		nullString(s.Device), nullString(s.Client), nullString(s.Platform), s.Active,
		nullString(s.ImportedFrom()), metadata,
	)
	db.writeMu.Unlock()
	metrics.RecordDBQuery("insert", "media_sessions", time.Since(start))
	if err != nil {
		return false, fmt.Errorf("failed to insert session %s: %w", s.SessionID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteImportedSessions removes every session for serverID that carries a
// history-import provenance tag. Sessions from other sources are untouched.
func (db *DB) DeleteImportedSessions(ctx context.Context, serverID string) (int64, error) {
	placeholders, args := importedFromArgs(serverID)

	db.writeMu.Lock()
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM media_sessions WHERE server_id = ? AND imported_from IN (`+placeholders+`)`,
		args...,
	)
	db.writeMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to delete imported sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// GetImportStatistics summarizes imported sessions for serverID. Date range
// bounds are nil when there is nothing imported.
func (db *DB) GetImportStatistics(ctx context.Context, serverID string) (*models.ImportStatistics, error) {
	placeholders, args := importedFromArgs(serverID)

	var (
		stats    models.ImportStatistics
		earliest sql.NullTime
		latest   sql.NullTime
	)
	start := time.Now()
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT username), MIN(started_at), MAX(started_at)
		FROM media_sessions
		WHERE server_id = ? AND imported_from IN (`+placeholders+`)`,
		args...,
	).Scan(&stats.TotalEntries, &stats.UniqueUsers, &earliest, &latest)
	metrics.RecordDBQuery("select", "media_sessions", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to query import statistics: %w", err)
	}

	if earliest.Valid {
		t := earliest.Time.UTC()
		stats.DateRange.Start = &t
	}
	if latest.Valid {
		t := latest.Time.UTC()
		stats.DateRange.End = &t
	}
	return &stats, nil
}

// GetSession loads a stored session, or nil when absent.
func (db *DB) GetSession(ctx context.Context, serverID, sessionID string) (*models.Session, error) {
	var (
		s                              models.Session
		userID, mediaID                sql.NullString
		device, client, platform, meta sql.NullString
		seriesName                     sql.NullString
		season, episode                sql.NullInt64
		endedAt                        sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT session_id, server_id, user_id, username, media_id, media_title, media_type,
			series_name, season_number, episode_number, started_at, ended_at, duration_ms,
			device, client, platform, active, metadata
		FROM media_sessions WHERE server_id = ? AND session_id = ?`,
		serverID, sessionID,
	).Scan(&s.SessionID, &s.ServerID, &userID, &s.Username, &mediaID, &s.MediaTitle, &s.MediaType,
		&seriesName, &season, &episode, &s.StartedAt, &endedAt, &s.DurationMs,
		&device, &client, &platform, &s.Active, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	s.UserID, s.MediaID = userID.String, mediaID.String
	s.Device, s.Client, s.Platform = device.String, client.String, platform.String
	if seriesName.Valid {
		s.SeriesName = &seriesName.String
	}
	if season.Valid {
		n := int(season.Int64)
		s.SeasonNumber = &n
	}
	if episode.Valid {
		n := int(episode.Int64)
		s.EpisodeNumber = &n
	}
	if endedAt.Valid {
		s.EndedAt = endedAt.Time
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &s.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for session %s: %w", sessionID, err)
		}
	}
	return &s, nil
}

func importedFromArgs(serverID string) (string, []any) {
	args := make([]any, 0, len(models.ImportedFromTags)+1)
	args = append(args, serverID)
	marks := make([]string, 0, len(models.ImportedFromTags))
	for _, tag := range models.ImportedFromTags {
		marks = append(marks, "?")
		args = append(args, tag)
	}
	return strings.Join(marks, ", "), args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optionalInt(n *int) any {
	if n == nil {
		return nil
	}
	return int64(*n)
}
