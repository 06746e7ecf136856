// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/historian/internal/models"
	"github.com/tomtom215/historian/internal/upstream"
)

// AudiobookShelfSource is the subset of the AudiobookShelf client the
// importer needs.
type AudiobookShelfSource interface {
	GetSessions(ctx context.Context, page, itemsPerPage int) (*upstream.ABSSessionsPage, error)
}

// AudiobookShelfImporter imports listening sessions.
type AudiobookShelfImporter struct {
	source   func(*models.MediaServer) AudiobookShelfSource
	resolver IdentityResolver
}

// NewAudiobookShelfImporter creates an importer. resolver may be nil.
func NewAudiobookShelfImporter(source func(*models.MediaServer) AudiobookShelfSource, resolver IdentityResolver) *AudiobookShelfImporter {
	return &AudiobookShelfImporter{source: source, resolver: resolver}
}

// Import implements Importer. Sessions arrive newest first by updatedAt,
// so the first session older than the cutoff ends the run. Pages are
// addressed by index, so every request uses the same page size and the cap
// is enforced mid-page.
func (a *AudiobookShelfImporter) Import(ctx context.Context, server *models.MediaServer, req Request, sink Sink) error {
	client := a.source(server)
	w := newWindow(server, req, a.resolver)

	for page := 0; !w.full(); page++ {
		size := w.pageSize
		resp, err := client.GetSessions(ctx, page, size)
		if err != nil {
			return fmt.Errorf("fetch audiobookshelf sessions page %d: %w", page, err)
		}

		for i := range resp.Sessions {
			if w.full() {
				return nil
			}
			s := &resp.Sessions[i]
			if s.UpdatedAt > 0 && w.expired(time.UnixMilli(s.UpdatedAt)) {
				return nil
			}
			if err := w.emit(ctx, sink, normalizeAudiobookShelf(server, s)); err != nil {
				return err
			}
		}

		if len(resp.Sessions) < size {
			return nil
		}
		if resp.NumPages > 0 && page+1 >= resp.NumPages {
			return nil
		}
	}
	return nil
}

func normalizeAudiobookShelf(server *models.MediaServer, s *upstream.ABSSession) Outcome {
	if s.UpdatedAt <= 0 {
		return Skipped(SkipMissingTimestamp, fmt.Errorf("session %s has no updatedAt", s.ID))
	}
	if s.ID == "" {
		return Skipped(SkipMissingItemID, errors.New("listening session has no id"))
	}

	userID, username := s.UserID, ""
	if s.User != nil {
		if s.User.ID != "" {
			userID = s.User.ID
		}
		username = s.User.Username
	}
	if userID == "" && username == "" {
		return Skipped(SkipMissingUser, fmt.Errorf("session %s has no user", s.ID))
	}
	if username == "" {
		username = userID
	}

	updatedAt := time.UnixMilli(s.UpdatedAt).UTC()
	durationMs := int64(s.TimeListening * 1000)
	if durationMs < 0 {
		durationMs = 0
	}
	startedAt := updatedAt.Add(-time.Duration(durationMs) * time.Millisecond)
	if s.StartedAt > 0 && s.StartedAt <= s.UpdatedAt {
		startedAt = time.UnixMilli(s.StartedAt).UTC()
	}

	mediaID := s.LibraryItemID
	if s.EpisodeID != "" {
		mediaID = s.LibraryItemID + "/" + s.EpisodeID
	}

	session := &models.Session{
		SessionID:  fmt.Sprintf("audiobookshelf_history_%s_%d", s.ID, updatedAt.Unix()),
		ServerID:   server.ID,
		UserID:     userID,
		Username:   username,
		MediaID:    mediaID,
		MediaTitle: s.DisplayTitle,
		MediaType:  s.MediaType,
		StartedAt:  startedAt,
		EndedAt:    updatedAt,
		DurationMs: durationMs,
		Client:     s.MediaPlayer,
		Metadata: map[string]any{
			"imported_from":       models.ImportedFromAudiobookShelf,
			"library_item_id":     s.LibraryItemID,
			"media_duration_secs": s.Duration,
			"duration_source":     "time_listening",
			"updated_at":          updatedAt.Format(time.RFC3339),
			"source_user_id":      userID,
		},
	}
	if s.DisplayAuthor != "" {
		session.Metadata["author"] = s.DisplayAuthor
	}
	if d := s.DeviceInfo; d != nil {
		session.Device = firstNonEmpty(d.DeviceName, d.Model, d.ClientName)
		session.Platform = d.OSName
		if d.ClientName != "" {
			session.Client = d.ClientName
		}
	}
	return Normalized(session)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
