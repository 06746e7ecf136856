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
	"time"
)

// PlexHistoryItem is one row of /status/sessions/history/all.
// History rows frequently omit duration; see the importer's fallback chain.
type PlexHistoryItem struct {
	HistoryKey           string `json:"historyKey"`
	RatingKey            string `json:"ratingKey"`
	ParentRatingKey      string `json:"parentRatingKey,omitempty"`
	GrandparentRatingKey string `json:"grandparentRatingKey,omitempty"`
	Title                string `json:"title"`
	ParentTitle          string `json:"parentTitle,omitempty"`
	GrandparentTitle     string `json:"grandparentTitle,omitempty"`
	Type                 string `json:"type"`
	Index                *int   `json:"index,omitempty"`
	ParentIndex          *int   `json:"parentIndex,omitempty"`
	ViewedAt             int64  `json:"viewedAt"`
	AccountID            int    `json:"accountID"`
	DeviceID             int    `json:"deviceID,omitempty"`
	LibrarySectionID     string `json:"librarySectionID,omitempty"`

	Duration            int64       `json:"duration,omitempty"`
	ParentDuration      int64       `json:"parentDuration,omitempty"`
	GrandparentDuration int64       `json:"grandparentDuration,omitempty"`
	Media               []PlexMedia `json:"Media,omitempty"`
}

// PlexMedia carries the per-version duration Plex attaches to metadata.
type PlexMedia struct {
	ID       int    `json:"id"`
	Duration int64  `json:"duration,omitempty"`
	Platform string `json:"platform,omitempty"`
	Device   string `json:"device,omitempty"`
}

// PlexHistoryPage is one page of history.
type PlexHistoryPage struct {
	MediaContainer struct {
		Size      int               `json:"size"`
		TotalSize int               `json:"totalSize"`
		Offset    int               `json:"offset"`
		Metadata  []PlexHistoryItem `json:"Metadata"`
	} `json:"MediaContainer"`
}

// PlexAccount maps accountID to a display name.
type PlexAccount struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type plexAccountsResponse struct {
	MediaContainer struct {
		Account []PlexAccount `json:"Account"`
	} `json:"MediaContainer"`
}

// PlexMetadataItem is the subset of /library/metadata/{ratingKey} used to
// recover durations.
type PlexMetadataItem struct {
	RatingKey string      `json:"ratingKey"`
	Title     string      `json:"title"`
	Type      string      `json:"type"`
	Duration  int64       `json:"duration,omitempty"`
	Media     []PlexMedia `json:"Media,omitempty"`
}

type plexMetadataResponse struct {
	MediaContainer struct {
		Metadata []PlexMetadataItem `json:"Metadata"`
	} `json:"MediaContainer"`
}

// PlexClient reads watch history from a Plex Media Server.
type PlexClient struct {
	*baseClient
}

// NewPlexClient creates a client authenticated with an X-Plex-Token.
func NewPlexClient(serverID, baseURL, token string, opts Options) *PlexClient {
	return &PlexClient{
		baseClient: newBaseClient("plex", serverID, baseURL, opts, func(req *http.Request) {
			req.Header.Set("X-Plex-Token", token)
			req.Header.Set("X-Plex-Client-Identifier", "historian-"+serverID)
			req.Header.Set("X-Plex-Product", "Historian")
		}),
	}
}

// GetHistory returns history newest first, restricted to entries viewed at
// or after since.
func (c *PlexClient) GetHistory(ctx context.Context, since time.Time, start, size int) (*PlexHistoryPage, error) {
	query := url.Values{}
	query.Set("sort", "viewedAt:desc")
	// Encodes to viewedAt%3E=<unix>, which Plex reads as viewedAt>=<unix>.
	query.Set("viewedAt>", strconv.FormatInt(since.Unix(), 10))
	query.Set("X-Plex-Container-Start", strconv.Itoa(start))
	query.Set("X-Plex-Container-Size", strconv.Itoa(size))

	var page PlexHistoryPage
	if err := c.getJSON(ctx, "/status/sessions/history/all", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAccounts lists the server's accounts.
func (c *PlexClient) GetAccounts(ctx context.Context) ([]PlexAccount, error) {
	var resp plexAccountsResponse
	if err := c.getJSON(ctx, "/accounts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Account, nil
}

// GetMetadata fetches a library item. It returns nil, nil when the server
// responds without a matching item.
func (c *PlexClient) GetMetadata(ctx context.Context, ratingKey string) (*PlexMetadataItem, error) {
	var resp plexMetadataResponse
	if err := c.getJSON(ctx, "/library/metadata/"+url.PathEscape(ratingKey), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.MediaContainer.Metadata) == 0 {
		return nil, nil
	}
	return &resp.MediaContainer.Metadata[0], nil
}
