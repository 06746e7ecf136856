// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ABSDeviceInfo describes the listening client.
type ABSDeviceInfo struct {
	DeviceID      string `json:"deviceId,omitempty"`
	ClientName    string `json:"clientName,omitempty"`
	DeviceName    string `json:"deviceName,omitempty"`
	OSName        string `json:"osName,omitempty"`
	Manufacturer  string `json:"manufacturer,omitempty"`
	Model         string `json:"model,omitempty"`
	ClientVersion string `json:"clientVersion,omitempty"`
}

// ABSUser is the user embedded in admin session listings.
type ABSUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ABSSession is one listening session. Timestamps are epoch milliseconds;
// durations are seconds.
type ABSSession struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	LibraryID     string         `json:"libraryId,omitempty"`
	LibraryItemID string         `json:"libraryItemId"`
	EpisodeID     string         `json:"episodeId,omitempty"`
	MediaType     string         `json:"mediaType"`
	DisplayTitle  string         `json:"displayTitle"`
	DisplayAuthor string         `json:"displayAuthor,omitempty"`
	Duration      float64        `json:"duration"`
	TimeListening float64        `json:"timeListening"`
	StartTime     float64        `json:"startTime"`
	CurrentTime   float64        `json:"currentTime"`
	StartedAt     int64          `json:"startedAt"`
	UpdatedAt     int64          `json:"updatedAt"`
	MediaPlayer   string         `json:"mediaPlayer,omitempty"`
	PlayMethod    int            `json:"playMethod,omitempty"`
	DeviceInfo    *ABSDeviceInfo `json:"deviceInfo,omitempty"`
	User          *ABSUser       `json:"user,omitempty"`
}

// ABSSessionsPage is one page of GET /api/sessions.
type ABSSessionsPage struct {
	Sessions     []ABSSession `json:"sessions"`
	Total        int          `json:"total"`
	NumPages     int          `json:"numPages"`
	Page         int          `json:"page"`
	ItemsPerPage int          `json:"itemsPerPage"`
}

// AudiobookShelfClient reads listening sessions from AudiobookShelf.
type AudiobookShelfClient struct {
	*baseClient
}

// NewAudiobookShelfClient creates a client authenticated with a bearer
// API token. The token must belong to an admin to list all users' sessions.
func NewAudiobookShelfClient(serverID, baseURL, token string, opts Options) *AudiobookShelfClient {
	return &AudiobookShelfClient{
		baseClient: newBaseClient("audiobookshelf", serverID, baseURL, opts, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token)
		}),
	}
}

// GetSessions returns page (zero based) of sessions, newest first.
func (c *AudiobookShelfClient) GetSessions(ctx context.Context, page, itemsPerPage int) (*ABSSessionsPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("itemsPerPage", strconv.Itoa(itemsPerPage))
	query.Set("sort", "updatedAt")
	query.Set("desc", "1")

	var resp ABSSessionsPage
	if err := c.getJSON(ctx, "/api/sessions", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
