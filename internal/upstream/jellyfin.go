// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package upstream

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const (
	// TicksPerMillisecond converts Jellyfin/Emby 100ns ticks.
	TicksPerMillisecond = 10_000

	// dotNetEpochTicks is 0001-01-01 to 1970-01-01 in 100ns ticks.
	dotNetEpochTicks = 621_355_968_000_000_000
)

// JellyfinUser is an entry of GET /Users.
type JellyfinUser struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// JellyfinUserData is the per-user playback state of an item.
type JellyfinUserData struct {
	Played                bool        `json:"Played"`
	PlayCount             int         `json:"PlayCount"`
	PlaybackPositionTicks int64       `json:"PlaybackPositionTicks"`
	LastPlayedDate        *TicksOrISO `json:"LastPlayedDate,omitempty"`
}

// JellyfinItem is a played library item.
type JellyfinItem struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	SeriesID          string            `json:"SeriesId,omitempty"`
	ParentIndexNumber *int              `json:"ParentIndexNumber,omitempty"`
	IndexNumber       *int              `json:"IndexNumber,omitempty"`
	RunTimeTicks      int64             `json:"RunTimeTicks"`
	UserData          *JellyfinUserData `json:"UserData,omitempty"`
}

// JellyfinItemsPage is one page of GET /Users/{id}/Items.
type JellyfinItemsPage struct {
	Items            []JellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
	StartIndex       int            `json:"StartIndex"`
}

// TicksOrISO decodes a date that is either an ISO-8601 string (current
// servers) or a raw .NET tick count (legacy Emby builds).
type TicksOrISO struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TicksOrISO) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}

	ticks, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid tick date %s: %w", data, err)
	}
	t.Time = DotNetTicksToTime(ticks)
	return nil
}

// DotNetTicksToTime converts ticks counted from 0001-01-01 UTC.
func DotNetTicksToTime(ticks int64) time.Time {
	unixTicks := ticks - dotNetEpochTicks
	return time.Unix(0, unixTicks*100).UTC()
}

// TicksToMilliseconds converts a 100ns tick duration.
func TicksToMilliseconds(ticks int64) int64 {
	return ticks / TicksPerMillisecond
}

// JellyfinClient reads played items from Jellyfin or Emby. The two share
// the same API surface for history.
type JellyfinClient struct {
	*baseClient
	flavor string
}

// NewJellyfinClient creates a client; flavor is "jellyfin" or "emby".
func NewJellyfinClient(flavor, serverID, baseURL, apiKey string, opts Options) *JellyfinClient {
	return &JellyfinClient{
		flavor: flavor,
		baseClient: newBaseClient(flavor, serverID, baseURL, opts, func(req *http.Request) {
			req.Header.Set("X-Emby-Token", apiKey)
			req.Header.Set("X-Emby-Client", "Historian")
			req.Header.Set("X-Emby-Device-Name", "Historian")
			req.Header.Set("X-Emby-Device-Id", "historian-"+serverID)
			req.Header.Set("X-Emby-Client-Version", "1.0.0")
		}),
	}
}

// Flavor returns "jellyfin" or "emby".
func (c *JellyfinClient) Flavor() string {
	return c.flavor
}

// GetUsers lists server users.
func (c *JellyfinClient) GetUsers(ctx context.Context) ([]JellyfinUser, error) {
	var users []JellyfinUser
	if err := c.getJSON(ctx, "/Users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetPlayedItems pages a user's played movies and episodes, most recently
// played first.
func (c *JellyfinClient) GetPlayedItems(ctx context.Context, userID string, startIndex, limit int) (*JellyfinItemsPage, error) {
	query := url.Values{}
	query.Set("Recursive", "true")
	query.Set("IsPlayed", "true")
	query.Set("SortBy", "DatePlayed")
	query.Set("SortOrder", "Descending")
	query.Set("IncludeItemTypes", "Movie,Episode")
	query.Set("Fields", "UserData,RunTimeTicks,SeriesName")
	query.Set("EnableUserData", "true")
	query.Set("StartIndex", strconv.Itoa(startIndex))
	query.Set("Limit", strconv.Itoa(limit))

	var page JellyfinItemsPage
	if err := c.getJSON(ctx, "/Users/"+url.PathEscape(userID)+"/Items", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
