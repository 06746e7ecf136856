// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// Server types understood by the history importers. The registry stores
// server_type as free text, so other values can exist and are rejected at
// import time.
const (
	ServerTypePlex           = "plex"
	ServerTypeJellyfin       = "jellyfin"
	ServerTypeEmby           = "emby"
	ServerTypeAudiobookShelf = "audiobookshelf"
)

// SupportedServerTypes lists the server types with a history importer.
var SupportedServerTypes = []string{
	ServerTypePlex,
	ServerTypeJellyfin,
	ServerTypeEmby,
	ServerTypeAudiobookShelf,
}

// MediaServer is a media server registration. The token is decrypted on
// read and never serialized.
type MediaServer struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	ServerType string    `json:"server_type" db:"server_type"`
	URL        string    `json:"url" db:"url"`
	Token      string    `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// MediaServerCreateRequest registers a server from the CLI or config seed.
type MediaServerCreateRequest struct {
	ID         string `json:"id,omitempty" validate:"omitempty,max=64"`
	Name       string `json:"name" validate:"required,max=100"`
	ServerType string `json:"server_type" validate:"required,server_type"`
	URL        string `json:"url" validate:"required,url"`
	Token      string `json:"token" validate:"required"`
}
