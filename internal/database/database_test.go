// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/models"
)

// testDBSemaphore keeps DuckDB CGO work from running concurrently across
// parallel tests.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

type fakeCipher struct{}

func (fakeCipher) Encrypt(s string) (string, error) { return "sealed:" + s, nil }
func (fakeCipher) Decrypt(s string) (string, error) {
	if len(s) < 7 || s[:7] != "sealed:" {
		return "", errors.New("not sealed")
	}
	return s[7:], nil
}

func TestCreateAndGetServer(t *testing.T) {
	db := setupTestDB(t)
	db.SetCredentialCipher(fakeCipher{})
	ctx := context.Background()

	server := &models.MediaServer{
		ID:         "plex-1",
		Name:       "Living Room",
		ServerType: models.ServerTypePlex,
		URL:        "http://plex.local:32400",
		Token:      "secret-token",
	}
	if err := db.CreateServer(ctx, server); err != nil {
		t.Fatalf("CreateServer() error = %v", err)
	}

	got, err := db.GetServer(ctx, "plex-1")
	if err != nil {
		t.Fatalf("GetServer() error = %v", err)
	}
	if got.Token != "secret-token" {
		t.Errorf("Token = %q, want decrypted secret-token", got.Token)
	}
	if got.ServerType != models.ServerTypePlex {
		t.Errorf("ServerType = %q", got.ServerType)
	}

	var raw string
	if err := db.conn.QueryRowContext(ctx, `SELECT token_encrypted FROM media_servers WHERE id = ?`, "plex-1").Scan(&raw); err != nil {
		t.Fatalf("raw select: %v", err)
	}
	if raw != "sealed:secret-token" {
		t.Errorf("stored token = %q, want sealed form", raw)
	}

	if err := db.CreateServer(ctx, server); !errors.Is(err, ErrServerIDConflict) {
		t.Errorf("duplicate CreateServer() error = %v, want ErrServerIDConflict", err)
	}
}

func TestGetServer_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetServer(context.Background(), "missing")
	if !errors.Is(err, ErrServerNotFound) {
		t.Errorf("GetServer() error = %v, want ErrServerNotFound", err)
	}
}

func TestListServers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, s := range []*models.MediaServer{
		{ID: "b", Name: "Books", ServerType: models.ServerTypeAudiobookShelf, URL: "http://abs", Token: "t"},
		{ID: "a", Name: "Anime", ServerType: models.ServerTypeJellyfin, URL: "http://jf", Token: "t"},
	} {
		if err := db.CreateServer(ctx, s); err != nil {
			t.Fatalf("CreateServer(%s) error = %v", s.ID, err)
		}
	}

	servers, err := db.ListServers(ctx)
	if err != nil {
		t.Fatalf("ListServers() error = %v", err)
	}
	if len(servers) != 2 || servers[0].Name != "Anime" {
		t.Errorf("ListServers() = %+v, want Anime first", servers)
	}
}

func testSession(id, server, tag, user string, started time.Time) *models.Session {
	return &models.Session{
		SessionID:  id,
		ServerID:   server,
		Username:   user,
		MediaID:    "m-" + id,
		MediaTitle: "Title " + id,
		MediaType:  "movie",
		StartedAt:  started,
		EndedAt:    started.Add(time.Hour),
		DurationMs: int64(time.Hour / time.Millisecond),
		Metadata:   map[string]any{"imported_from": tag},
	}
}

func TestInsertSession_Deduplicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	s := testSession("plex_history_1_100", "srv", models.ImportedFromPlex, "alice", started)
	episode := 4
	s.EpisodeNumber = &episode

	stored, err := db.InsertSession(ctx, s)
	if err != nil {
		t.Fatalf("InsertSession() error = %v", err)
	}
	if !stored {
		t.Fatal("first insert should store")
	}

	stored, err = db.InsertSession(ctx, s)
	if err != nil {
		t.Fatalf("second InsertSession() error = %v", err)
	}
	if stored {
		t.Error("second insert of the same identity should be a no-op")
	}

	// Same session id on another server is a different identity.
	other := testSession("plex_history_1_100", "srv-2", models.ImportedFromPlex, "alice", started)
	if stored, err := db.InsertSession(ctx, other); err != nil || !stored {
		t.Errorf("insert on other server: stored=%v err=%v", stored, err)
	}

	got, err := db.GetSession(ctx, "srv", "plex_history_1_100")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetSession() returned nil")
	}
	if got.ImportedFrom() != models.ImportedFromPlex {
		t.Errorf("imported_from = %q", got.ImportedFrom())
	}
	if got.EpisodeNumber == nil || *got.EpisodeNumber != 4 {
		t.Errorf("EpisodeNumber = %v, want 4", got.EpisodeNumber)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
}

func TestInsertSession_RequiresIdentity(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.InsertSession(context.Background(), &models.Session{ServerID: "srv"}); err == nil {
		t.Error("expected error for missing session_id")
	}
}

func TestImportStatisticsAndClear(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	sessions := []*models.Session{
		testSession("a", "srv", models.ImportedFromJellyfin, "alice", base),
		testSession("b", "srv", models.ImportedFromJellyfin, "bob", base.Add(48*time.Hour)),
		testSession("c", "srv", models.ImportedFromJellyfin, "alice", base.Add(24*time.Hour)),
		// Live-monitor session without provenance: must survive clear.
		testSession("live", "srv", "", "carol", base),
		testSession("d", "other", models.ImportedFromJellyfin, "dave", base),
	}
	sessions[3].Metadata = nil
	for _, s := range sessions {
		if _, err := db.InsertSession(ctx, s); err != nil {
			t.Fatalf("InsertSession(%s) error = %v", s.SessionID, err)
		}
	}

	stats, err := db.GetImportStatistics(ctx, "srv")
	if err != nil {
		t.Fatalf("GetImportStatistics() error = %v", err)
	}
	if stats.TotalEntries != 3 {
		t.Errorf("TotalEntries = %d, want 3", stats.TotalEntries)
	}
	if stats.UniqueUsers != 2 {
		t.Errorf("UniqueUsers = %d, want 2", stats.UniqueUsers)
	}
	if stats.DateRange.Start == nil || !stats.DateRange.Start.Equal(base) {
		t.Errorf("DateRange.Start = %v, want %v", stats.DateRange.Start, base)
	}
	if stats.DateRange.End == nil || !stats.DateRange.End.Equal(base.Add(48*time.Hour)) {
		t.Errorf("DateRange.End = %v", stats.DateRange.End)
	}

	deleted, err := db.DeleteImportedSessions(ctx, "srv")
	if err != nil {
		t.Fatalf("DeleteImportedSessions() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	if live, err := db.GetSession(ctx, "srv", "live"); err != nil || live == nil {
		t.Errorf("non-imported session should remain: %v %v", live, err)
	}
	if other, err := db.GetSession(ctx, "other", "d"); err != nil || other == nil {
		t.Errorf("other server's session should remain: %v %v", other, err)
	}

	stats, err = db.GetImportStatistics(ctx, "srv")
	if err != nil {
		t.Fatalf("GetImportStatistics() error = %v", err)
	}
	if stats.TotalEntries != 0 || stats.DateRange.Start != nil {
		t.Errorf("stats after clear = %+v, want empty", stats)
	}
}
