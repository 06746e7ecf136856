// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/models"
	"github.com/tomtom215/historian/internal/upstream"
)

// JellyfinSource is the subset of the Jellyfin/Emby client the importer needs.
type JellyfinSource interface {
	Flavor() string
	GetUsers(ctx context.Context) ([]upstream.JellyfinUser, error)
	GetPlayedItems(ctx context.Context, userID string, startIndex, limit int) (*upstream.JellyfinItemsPage, error)
}

// JellyfinImporter imports played items from Jellyfin and Emby. Both expose
// per-user played state rather than a history log, so each user is paged
// separately.
type JellyfinImporter struct {
	source   func(*models.MediaServer) JellyfinSource
	resolver IdentityResolver
}

// NewJellyfinImporter creates an importer. resolver may be nil.
func NewJellyfinImporter(source func(*models.MediaServer) JellyfinSource, resolver IdentityResolver) *JellyfinImporter {
	return &JellyfinImporter{source: source, resolver: resolver}
}

// Import implements Importer. A failure listing users fails the run; a
// failure paging one user only ends that user.
func (j *JellyfinImporter) Import(ctx context.Context, server *models.MediaServer, req Request, sink Sink) error {
	client := j.source(server)
	w := newWindow(server, req, j.resolver)

	users, err := client.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("list %s users: %w", client.Flavor(), err)
	}

	for _, user := range users {
		if w.full() {
			return nil
		}
		if err := j.importUser(ctx, client, server, user, w, sink); err != nil {
			if !isScopeError(err) || ctx.Err() != nil {
				return err
			}
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID).
				Msg("Skipping remaining history for user")
		}
	}
	return nil
}

func (j *JellyfinImporter) importUser(ctx context.Context, client JellyfinSource, server *models.MediaServer,
	user upstream.JellyfinUser, w *window, sink Sink) error {
	flavor := client.Flavor()
	start := 0
	for !w.full() {
		size := w.nextPageSize()
		page, err := client.GetPlayedItems(ctx, user.ID, start, size)
		if err != nil {
			return &scopeError{scope: "user " + user.ID, err: err}
		}

		for i := range page.Items {
			if w.full() {
				return nil
			}
			item := &page.Items[i]
			if played := lastPlayed(item); !played.IsZero() && w.expired(played) {
				return nil
			}
			if err := w.emit(ctx, sink, normalizeJellyfin(flavor, server, user, item)); err != nil {
				return err
			}
		}

		if len(page.Items) < size {
			return nil
		}
		start += len(page.Items)
	}
	return nil
}

func lastPlayed(item *upstream.JellyfinItem) time.Time {
	if item.UserData == nil || item.UserData.LastPlayedDate == nil {
		return time.Time{}
	}
	return item.UserData.LastPlayedDate.Time
}

func normalizeJellyfin(flavor string, server *models.MediaServer, user upstream.JellyfinUser, item *upstream.JellyfinItem) Outcome {
	played := lastPlayed(item)
	if played.IsZero() {
		return Skipped(SkipMissingTimestamp, fmt.Errorf("item %s has no last played date", item.ID))
	}
	if item.ID == "" {
		return Skipped(SkipMissingItemID, errors.New("played item has no id"))
	}
	if user.ID == "" {
		return Skipped(SkipMissingUser, errors.New("user has no id"))
	}

	durationMs := upstream.TicksToMilliseconds(item.RunTimeTicks)
	source := "runtime_ticks"
	if durationMs <= 0 && item.UserData.PlaybackPositionTicks > 0 {
		durationMs = upstream.TicksToMilliseconds(item.UserData.PlaybackPositionTicks)
		source = "position_ticks"
	}
	if durationMs <= 0 {
		durationMs = 0
		source = durationUnknown
	}

	username := user.Name
	if username == "" {
		username = user.ID
	}

	tag := models.ImportedFromJellyfin
	if flavor == models.ServerTypeEmby {
		tag = models.ImportedFromEmby
	}

	session := &models.Session{
		SessionID:     fmt.Sprintf("%s_history_%s_%s_%d", flavor, item.ID, user.ID, played.Unix()),
		ServerID:      server.ID,
		UserID:        user.ID,
		Username:      username,
		MediaID:       item.ID,
		MediaTitle:    item.Name,
		MediaType:     strings.ToLower(item.Type),
		SeasonNumber:  item.ParentIndexNumber,
		EpisodeNumber: item.IndexNumber,
		StartedAt:     played.Add(-time.Duration(durationMs) * time.Millisecond),
		EndedAt:       played,
		DurationMs:    durationMs,
		Metadata: map[string]any{
			"imported_from":   tag,
			"duration_source": source,
			"play_count":      item.UserData.PlayCount,
			"last_played_at":  played.Format(time.RFC3339),
			"source_user_id":  user.ID,
		},
	}
	if item.SeriesName != "" {
		series := item.SeriesName
		session.SeriesName = &series
	}
	return Normalized(session)
}
