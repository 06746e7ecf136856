// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package dispatch

import (
	"github.com/tomtom215/historian/internal/history"
	"github.com/tomtom215/historian/internal/models"
	"github.com/tomtom215/historian/internal/upstream"
)

// NewImporters wires one importer per supported server type to the cached
// clients in reg. Jellyfin and Emby share an importer; the client carries
// the flavor. resolver may be nil.
func NewImporters(reg *upstream.Registry, resolver history.IdentityResolver) map[string]history.Importer {
	plex := history.NewPlexImporter(func(s *models.MediaServer) history.PlexSource {
		return reg.Plex(s)
	}, resolver)
	jellyfin := history.NewJellyfinImporter(func(s *models.MediaServer) history.JellyfinSource {
		return reg.Jellyfin(s)
	}, resolver)
	abs := history.NewAudiobookShelfImporter(func(s *models.MediaServer) history.AudiobookShelfSource {
		return reg.AudiobookShelf(s)
	}, resolver)

	return map[string]history.Importer{
		models.ServerTypePlex:           plex,
		models.ServerTypeJellyfin:       jellyfin,
		models.ServerTypeEmby:           jellyfin,
		models.ServerTypeAudiobookShelf: abs,
	}
}
