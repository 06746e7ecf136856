// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/models"
	"github.com/tomtom215/historian/internal/upstream"
)

// PlexSource is the subset of the Plex client the importer needs.
type PlexSource interface {
	GetHistory(ctx context.Context, since time.Time, start, size int) (*upstream.PlexHistoryPage, error)
	GetAccounts(ctx context.Context) ([]upstream.PlexAccount, error)
	GetMetadata(ctx context.Context, ratingKey string) (*upstream.PlexMetadataItem, error)
}

// Duration sources recorded in metadata["duration_source"].
const (
	durationFromEntry       = "entry"
	durationFromParent      = "parent"
	durationFromGrandparent = "grandparent"
	durationFromMedia       = "media"
	durationFromLookup      = "lookup"
	durationUnknown         = "none"
)

// PlexImporter imports Plex watch history.
type PlexImporter struct {
	source   func(*models.MediaServer) PlexSource
	resolver IdentityResolver
}

// NewPlexImporter creates an importer. source returns the client for a
// server; resolver may be nil.
func NewPlexImporter(source func(*models.MediaServer) PlexSource, resolver IdentityResolver) *PlexImporter {
	return &PlexImporter{source: source, resolver: resolver}
}

// Import implements Importer.
func (p *PlexImporter) Import(ctx context.Context, server *models.MediaServer, req Request, sink Sink) error {
	client := p.source(server)
	w := newWindow(server, req, p.resolver)
	run := &plexRun{
		client:    client,
		server:    server,
		accounts:  loadPlexAccounts(ctx, client),
		durations: make(map[string]int64),
	}

	start := 0
	for !w.full() {
		size := w.nextPageSize()
		page, err := client.GetHistory(ctx, w.cutoff, start, size)
		if err != nil {
			return fmt.Errorf("fetch plex history at offset %d: %w", start, err)
		}

		items := page.MediaContainer.Metadata
		for i := range items {
			if w.full() {
				return nil
			}
			item := &items[i]
			if item.ViewedAt > 0 && w.expired(time.Unix(item.ViewedAt, 0)) {
				return nil
			}
			if err := w.emit(ctx, sink, run.normalize(ctx, item)); err != nil {
				return err
			}
		}

		if len(items) < size {
			return nil
		}
		start += len(items)
	}
	return nil
}

// plexRun holds per-run lookup state.
type plexRun struct {
	client PlexSource
	server *models.MediaServer

	// accounts is nil when the account list could not be fetched.
	accounts map[int]string

	// durations caches metadata lookups by rating key. Zero marks a miss.
	durations map[string]int64
}

func loadPlexAccounts(ctx context.Context, client PlexSource) map[int]string {
	accounts, err := client.GetAccounts(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load Plex accounts, using account ids as usernames")
		return nil
	}
	byID := make(map[int]string, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a.Name
	}
	return byID
}

func (r *plexRun) username(accountID int) (string, bool) {
	if r.accounts == nil {
		return "plex-account-" + strconv.Itoa(accountID), true
	}
	name, ok := r.accounts[accountID]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func (r *plexRun) normalize(ctx context.Context, item *upstream.PlexHistoryItem) Outcome {
	if item.ViewedAt <= 0 {
		return Skipped(SkipMissingTimestamp, errors.New("history entry has no viewedAt"))
	}
	if item.RatingKey == "" {
		return Skipped(SkipMissingItemID, errors.New("history entry has no ratingKey"))
	}
	username, ok := r.username(item.AccountID)
	if !ok {
		return Skipped(SkipUnknownAccount, fmt.Errorf("account %d not found", item.AccountID))
	}

	durationMs, source, err := r.duration(ctx, item)
	if err != nil {
		return Fatal(err)
	}

	viewedAt := time.Unix(item.ViewedAt, 0).UTC()
	session := &models.Session{
		SessionID:     fmt.Sprintf("plex_history_%s_%d", item.RatingKey, item.ViewedAt),
		ServerID:      r.server.ID,
		UserID:        strconv.Itoa(item.AccountID),
		Username:      username,
		MediaID:       item.RatingKey,
		MediaTitle:    item.Title,
		MediaType:     item.Type,
		SeasonNumber:  item.ParentIndex,
		EpisodeNumber: item.Index,
		StartedAt:     viewedAt.Add(-time.Duration(durationMs) * time.Millisecond),
		EndedAt:       viewedAt,
		DurationMs:    durationMs,
		Metadata: map[string]any{
			"imported_from":   models.ImportedFromPlex,
			"duration_source": source,
			"viewed_at":       viewedAt.Format(time.RFC3339),
			"source_user_id":  strconv.Itoa(item.AccountID),
		},
	}
	if item.Type == "episode" && item.GrandparentTitle != "" {
		series := item.GrandparentTitle
		session.SeriesName = &series
	}
	if item.HistoryKey != "" {
		session.Metadata["history_key"] = item.HistoryKey
	}
	if item.DeviceID != 0 {
		session.Metadata["device_id"] = item.DeviceID
	}
	if len(item.Media) > 0 {
		session.Platform = item.Media[0].Platform
		session.Device = item.Media[0].Device
	}
	return Normalized(session)
}

// duration resolves a watch duration in milliseconds. Only a cancelled
// context is an error; every other miss falls through to zero.
func (r *plexRun) duration(ctx context.Context, item *upstream.PlexHistoryItem) (int64, string, error) {
	switch {
	case item.Duration > 0:
		return item.Duration, durationFromEntry, nil
	case item.ParentDuration > 0:
		return item.ParentDuration, durationFromParent, nil
	case item.GrandparentDuration > 0:
		return item.GrandparentDuration, durationFromGrandparent, nil
	}
	if d := mediaDuration(item.Media); d > 0 {
		return d, durationFromMedia, nil
	}

	if d, seen := r.durations[item.RatingKey]; seen {
		if d > 0 {
			return d, durationFromLookup, nil
		}
		return 0, durationUnknown, nil
	}

	meta, err := r.client.GetMetadata(ctx, item.RatingKey)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, "", ctxErr
		}
		logging.Ctx(ctx).Debug().Err(err).Str("rating_key", item.RatingKey).
			Msg("Plex metadata lookup failed")
	}

	var d int64
	if meta != nil {
		d = meta.Duration
		if d <= 0 {
			d = mediaDuration(meta.Media)
		}
	}
	r.durations[item.RatingKey] = d
	if d > 0 {
		return d, durationFromLookup, nil
	}
	return 0, durationUnknown, nil
}

func mediaDuration(media []upstream.PlexMedia) int64 {
	for _, m := range media {
		if m.Duration > 0 {
			return m.Duration
		}
	}
	return 0
}
