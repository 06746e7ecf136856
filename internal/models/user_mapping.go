// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// UserMapping ties a user id from one media server to a stable internal
// user id. Jellyfin and Emby use UUIDs, Plex uses integer account ids and
// AudiobookShelf uses opaque strings; the internal id gives every importer
// the same shape.
type UserMapping struct {
	ID             int64     `json:"id"`
	Source         string    `json:"source"`
	ServerID       string    `json:"server_id"`
	ExternalUserID string    `json:"external_user_id"`
	InternalUserID int       `json:"internal_user_id"`
	Username       *string   `json:"username,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserMappingLookup identifies the user to resolve.
type UserMappingLookup struct {
	Source         string
	ServerID       string
	ExternalUserID string
	Username       *string
}
