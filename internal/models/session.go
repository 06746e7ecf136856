// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// Provenance tags written to Session.Metadata["imported_from"]. Rows carrying
// one of these tags are owned by the history importers.
const (
	ImportedFromPlex           = "plex_history"
	ImportedFromJellyfin       = "jellyfin_history"
	ImportedFromEmby           = "emby_history"
	ImportedFromAudiobookShelf = "audiobookshelf_history"
)

// ImportedFromTags is the full tag family, used when clearing imported data.
var ImportedFromTags = []string{
	ImportedFromPlex,
	ImportedFromJellyfin,
	ImportedFromEmby,
	ImportedFromAudiobookShelf,
}

// Session is a normalized playback or listening session.
// (SessionID, ServerID) is the identity; a session is written at most once.
type Session struct {
	SessionID string `json:"session_id"`
	ServerID  string `json:"server_id"`

	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username"`

	MediaID    string `json:"media_id"`
	MediaTitle string `json:"media_title"`
	MediaType  string `json:"media_type"`

	SeriesName    *string `json:"series_name,omitempty"`
	SeasonNumber  *int    `json:"season_number,omitempty"`
	EpisodeNumber *int    `json:"episode_number,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`

	Device   string `json:"device,omitempty"`
	Client   string `json:"client,omitempty"`
	Platform string `json:"platform,omitempty"`

	Active   bool           `json:"active"`
	Metadata map[string]any `json:"metadata"`
}

// ImportedFrom returns the provenance tag, or "" when the session did not
// come from a history import.
func (s *Session) ImportedFrom() string {
	if s.Metadata == nil {
		return ""
	}
	tag, _ := s.Metadata["imported_from"].(string)
	return tag
}

// DateRange is an inclusive time window over stored sessions.
type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// ImportStatistics summarizes imported sessions for one server.
type ImportStatistics struct {
	TotalEntries int64     `json:"total_entries"`
	UniqueUsers  int64     `json:"unique_users"`
	DateRange    DateRange `json:"date_range"`
}
