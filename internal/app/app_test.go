// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package app

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/dispatch"
	"github.com/tomtom215/historian/internal/jobs"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1},
		Import: config.ImportConfig{
			PageSize:           50,
			ProgressInterval:   10,
			MaxDaysBack:        365,
			SerializePerServer: true,
			ResolveIdentities:  true,
		},
		Security: config.SecurityConfig{EncryptionSecret: "a-test-secret-that-is-long-enough-0123"},
		Servers: []config.SeedServer{
			{ID: "plex-1", Name: "Den", ServerType: "plex", URL: "http://plex.local:32400", Token: "tok-1"},
			{ID: "abs-1", Name: "Books", ServerType: "audiobookshelf", URL: "http://abs.local", Token: "tok-2"},
		},
	}
}

func TestOpenDatabase_SeedsAndEncrypts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	defer db.Close()

	servers, err := db.ListServers(ctx)
	if err != nil {
		t.Fatalf("ListServers() error = %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("ListServers() = %d servers, want 2", len(servers))
	}

	plex, err := db.GetServer(ctx, "plex-1")
	if err != nil {
		t.Fatalf("GetServer() error = %v", err)
	}
	if plex.Token != "tok-1" {
		t.Errorf("Token = %q, want decrypted tok-1", plex.Token)
	}

	// Seeding again is a no-op.
	added, err := SeedServers(ctx, db, cfg.Servers)
	if err != nil || added != 0 {
		t.Errorf("SeedServers() = %d, %v; want 0, nil", added, err)
	}
}

func TestNewDispatcher_RoutesServerTypes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	defer db.Close()

	svc := NewDispatcher(cfg, db, jobs.NewTracker(jobs.NewMemoryStore()), NewPool(cfg))

	if _, err := svc.ImportHistory(ctx, "plex-1", 0, nil, ""); !errors.Is(err, dispatch.ErrInvalidArgument) {
		t.Errorf("ImportHistory(days=0) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.ImportHistory(ctx, "plex-1", 400, nil, ""); !errors.Is(err, dispatch.ErrInvalidArgument) {
		t.Errorf("ImportHistory(days=400) error = %v, want ErrInvalidArgument", err)
	}

	stats, err := svc.GetImportStatistics(ctx, "abs-1")
	if err != nil || stats.TotalEntries != 0 {
		t.Errorf("GetImportStatistics() = %+v, %v", stats, err)
	}
}
