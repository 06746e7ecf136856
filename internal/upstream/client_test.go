// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/historian/internal/models"
)

func testOptions() Options {
	return Options{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             100,
		CircuitBreaker:    true,
		RetryBaseDelay:    time.Millisecond,
	}
}

func TestPlexClient_GetHistory(t *testing.T) {
	t.Parallel()

	var gotQuery, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/sessions/history/all" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotToken = r.Header.Get("X-Plex-Token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":1,"totalSize":1,"Metadata":[
			{"historyKey":"/status/sessions/history/1","ratingKey":"42","title":"Heat","type":"movie","viewedAt":1700000000,"accountID":1}
		]}}`))
	}))
	defer srv.Close()

	client := NewPlexClient("srv", srv.URL, "tok", testOptions())
	page, err := client.GetHistory(context.Background(), time.Unix(1690000000, 0), 0, 100)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}

	if gotToken != "tok" {
		t.Errorf("X-Plex-Token = %q", gotToken)
	}
	for _, want := range []string{"sort=viewedAt%3Adesc", "viewedAt%3E=1690000000", "X-Plex-Container-Size=100"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if len(page.MediaContainer.Metadata) != 1 || page.MediaContainer.Metadata[0].RatingKey != "42" {
		t.Errorf("unexpected page: %+v", page.MediaContainer)
	}
}

func TestBaseClient_RetriesOn429(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"MediaContainer":{"Account":[{"id":1,"name":"alice"}]}}`))
	}))
	defer srv.Close()

	client := NewPlexClient("srv", srv.URL, "tok", testOptions())
	accounts, err := client.GetAccounts(context.Background())
	if err != nil {
		t.Fatalf("GetAccounts() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(accounts) != 1 || accounts[0].Name != "alice" {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestBaseClient_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad token"))
	}))
	defer srv.Close()

	client := NewJellyfinClient(models.ServerTypeJellyfin, "srv", srv.URL, "key", testOptions())
	_, err := client.GetUsers(context.Background())

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T %v", err, err)
	}
	if se.StatusCode != http.StatusUnauthorized || se.Body != "bad token" {
		t.Errorf("StatusError = %+v", se)
	}
	if got := se.Error(); got != "jellyfin /Users returned status 401: bad token" {
		t.Errorf("Error() = %q", got)
	}
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	t.Parallel()

	b := newBreaker("test-client-errors")
	for i := 0; i < 20; i++ {
		_ = b.execute(func() error {
			return &StatusError{StatusCode: http.StatusNotFound}
		})
	}
	if b.state() != gobreaker.StateClosed {
		t.Errorf("4xx responses should not open the breaker, state = %v", b.state())
	}

	b = newBreaker("test-server-errors")
	for i := 0; i < 10; i++ {
		_ = b.execute(func() error {
			return &StatusError{StatusCode: http.StatusBadGateway}
		})
	}
	if b.state() != gobreaker.StateOpen {
		t.Errorf("5xx responses should open the breaker, state = %v", b.state())
	}

	err := b.execute(func() error { return nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}

func TestJellyfinClient_GetPlayedItems(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/u1/Items" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Emby-Token") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("SortBy") != "DatePlayed" || q.Get("SortOrder") != "Descending" || q.Get("StartIndex") != "100" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`{"Items":[
			{"Id":"i1","Name":"Pilot","Type":"Episode","SeriesName":"Show","ParentIndexNumber":1,"IndexNumber":1,
			 "RunTimeTicks":36000000000,"UserData":{"Played":true,"LastPlayedDate":"2026-02-01T10:00:00.1234567Z"}},
			{"Id":"i2","Name":"Old","Type":"Movie","RunTimeTicks":0,
			 "UserData":{"Played":true,"LastPlayedDate":638400000000000000}}
		],"TotalRecordCount":2,"StartIndex":100}`))
	}))
	defer srv.Close()

	client := NewJellyfinClient(models.ServerTypeEmby, "srv", srv.URL, "key", testOptions())
	page, err := client.GetPlayedItems(context.Background(), "u1", 100, 100)
	if err != nil {
		t.Fatalf("GetPlayedItems() error = %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(page.Items))
	}

	first := page.Items[0]
	want := time.Date(2026, 2, 1, 10, 0, 0, 123456700, time.UTC)
	if !first.UserData.LastPlayedDate.Equal(want) {
		t.Errorf("LastPlayedDate = %v, want %v", first.UserData.LastPlayedDate.Time, want)
	}
	if TicksToMilliseconds(first.RunTimeTicks) != 3_600_000 {
		t.Errorf("RunTimeTicks ms = %d", TicksToMilliseconds(first.RunTimeTicks))
	}

	legacy := page.Items[1].UserData.LastPlayedDate.Time
	if !legacy.Equal(DotNetTicksToTime(638400000000000000)) {
		t.Errorf("legacy tick date = %v", legacy)
	}
	if client.Flavor() != models.ServerTypeEmby {
		t.Errorf("Flavor() = %q", client.Flavor())
	}
}

func TestDotNetTicksToTime(t *testing.T) {
	t.Parallel()

	if got := DotNetTicksToTime(dotNetEpochTicks); !got.Equal(time.Unix(0, 0)) {
		t.Errorf("epoch ticks = %v, want 1970-01-01", got)
	}
	// One day after the Unix epoch.
	day := int64(24 * time.Hour / 100)
	if got := DotNetTicksToTime(dotNetEpochTicks + day); !got.Equal(time.Unix(86400, 0)) {
		t.Errorf("epoch+1d = %v", got)
	}
}

func TestTicksOrISO_Null(t *testing.T) {
	t.Parallel()

	var data JellyfinUserData
	if err := json.Unmarshal([]byte(`{"LastPlayedDate":null}`), &data); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if data.LastPlayedDate != nil && !data.LastPlayedDate.IsZero() {
		t.Errorf("expected zero date, got %v", data.LastPlayedDate)
	}
}

func TestAudiobookShelfClient_GetSessions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abs-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("itemsPerPage") != "100" {
			t.Errorf("unexpected query %v", r.URL.Query())
		}
		_, _ = w.Write([]byte(`{"sessions":[{"id":"s1","userId":"u1","libraryItemId":"li1","mediaType":"book",
			"displayTitle":"Dune","displayAuthor":"Herbert","duration":3600,"timeListening":1800,
			"startedAt":1767225600000,"updatedAt":1767227400000,"user":{"id":"u1","username":"alice"}}],
			"total":201,"numPages":3,"page":2,"itemsPerPage":100}`))
	}))
	defer srv.Close()

	client := NewAudiobookShelfClient("srv", srv.URL, "abs-token", testOptions())
	page, err := client.GetSessions(context.Background(), 2, 100)
	if err != nil {
		t.Fatalf("GetSessions() error = %v", err)
	}
	if page.NumPages != 3 || len(page.Sessions) != 1 {
		t.Fatalf("page = %+v", page)
	}
	if page.Sessions[0].User == nil || page.Sessions[0].User.Username != "alice" {
		t.Errorf("user = %+v", page.Sessions[0].User)
	}
}

func TestRegistry_CachesPerServer(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testOptions())
	server := &models.MediaServer{ID: "s1", ServerType: models.ServerTypePlex, URL: "http://a", Token: "t"}

	first := reg.Plex(server)
	if reg.Plex(server) != first {
		t.Error("expected cached client for unchanged server")
	}

	changed := *server
	changed.Token = "rotated"
	if reg.Plex(&changed) == first {
		t.Error("expected new client after token change")
	}
}
