// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/logging"
)

// testCommandContext shares one database across every command run with it,
// the way a single process would.
func testCommandContext(t *testing.T) *commandContext {
	t.Helper()
	ctx := newCommandContext()
	ctx.config = &config.Config{
		Database: config.DatabaseConfig{
			Path:      filepath.Join(t.TempDir(), "historian.duckdb"),
			MaxMemory: "256MB",
			Threads:   1,
		},
		Import: config.ImportConfig{
			PageSize:           50,
			ProgressInterval:   10,
			MaxDaysBack:        365,
			SerializePerServer: true,
			ResolveIdentities:  true,
		},
		Upstream: config.UpstreamConfig{Timeout: 5 * time.Second, RequestsPerSecond: 1000, Burst: 100},
	}
	t.Cleanup(ctx.close)
	return ctx
}

func runCLI(t *testing.T, ctx *commandContext, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(ctx)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fakeAudiobookShelf(t *testing.T) *httptest.Server {
	t.Helper()
	updated := time.Now().Add(-2 * time.Hour).UnixMilli()
	body := fmt.Sprintf(`{"sessions":[
		{"id":"ls_1","userId":"u1","libraryItemId":"li_1","mediaType":"book","displayTitle":"Dune",
		 "timeListening":1800,"startedAt":%d,"updatedAt":%d,"user":{"id":"u1","username":"paul"}}
	],"total":1,"numPages":1,"page":0,"itemsPerPage":50}`, updated-1800*1000, updated)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServersAddAndList(t *testing.T) {
	ctx := testCommandContext(t)

	out, err := runCLI(t, ctx, "servers", "add", "--id", "den", "--name", "Den", "--type", "Plex",
		"--url", "http://plex.local:32400/", "--token", "abcdefgh1234")
	if err != nil {
		t.Fatalf("servers add error = %v: %s", err, out)
	}
	if !strings.Contains(out, "Registered plex server den") {
		t.Errorf("output = %q", out)
	}

	out, err = runCLI(t, ctx, "servers", "list")
	if err != nil {
		t.Fatalf("servers list error = %v", err)
	}
	for _, want := range []string{"den", "http://plex.local:32400", "****...1234"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "abcdefgh1234") {
		t.Errorf("token printed in full:\n%s", out)
	}
}

func TestServersAdd_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unsupported type", []string{"--name", "T", "--type", "tautulli", "--url", "http://t.local", "--token", "x"}},
		{"bad url", []string{"--name", "T", "--type", "plex", "--url", "not a url", "--token", "x"}},
		{"missing token", []string{"--name", "T", "--type", "plex", "--url", "http://p.local"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testCommandContext(t)
			if _, err := runCLI(t, ctx, append([]string{"servers", "add"}, tt.args...)...); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestImportStatsClear(t *testing.T) {
	ctx := testCommandContext(t)
	abs := fakeAudiobookShelf(t)

	if out, err := runCLI(t, ctx, "servers", "add", "--id", "books", "--name", "Books", "--type", "audiobookshelf",
		"--url", abs.URL, "--token", "tok"); err != nil {
		t.Fatalf("servers add error = %v: %s", err, out)
	}

	out, err := runCLI(t, ctx, "import", "--server", "books", "--days", "7")
	if err != nil {
		t.Fatalf("import error = %v: %s", err, out)
	}
	if !strings.Contains(out, "completed") {
		t.Errorf("import output:\n%s", out)
	}

	// Second run stores nothing new.
	if _, err := runCLI(t, ctx, "import", "--server", "books", "--days", "7"); err != nil {
		t.Fatalf("second import error = %v", err)
	}

	out, err = runCLI(t, ctx, "stats", "--server", "books")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if !strings.Contains(out, "Imported sessions") || !strings.Contains(out, " 1 ") {
		t.Errorf("stats output:\n%s", out)
	}

	if _, err := runCLI(t, ctx, "clear", "--server", "books"); err == nil {
		t.Error("clear without --yes should fail")
	}
	// A failed command leaves the database usable.
	out, err = runCLI(t, ctx, "servers", "list")
	if err != nil || !strings.Contains(out, "books") {
		t.Fatalf("servers list after failed clear = %q, %v", out, err)
	}
	out, err = runCLI(t, ctx, "clear", "--server", "books", "--yes")
	if err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if !strings.Contains(out, "Deleted 1 imported sessions") {
		t.Errorf("clear output = %q", out)
	}
}

func TestImport_Errors(t *testing.T) {
	ctx := testCommandContext(t)

	if _, err := runCLI(t, ctx, "import", "--server", "missing"); err == nil {
		t.Error("import of an unknown server should fail")
	}
	if _, err := runCLI(t, ctx, "import"); err == nil {
		t.Error("import without --server should fail")
	}
	if _, err := runCLI(t, ctx, "import", "--server", "x", "--days", "0"); err == nil {
		t.Error("import with --days 0 should fail")
	}
}

func TestLogLevelFlagOverridesConfig(t *testing.T) {
	ctx := testCommandContext(t)
	t.Cleanup(func() { logging.SetLevelString("info") })

	if _, err := runCLI(t, ctx, "--log-level", "error", "servers", "list"); err != nil {
		t.Fatalf("servers list error = %v", err)
	}
	if got := zerolog.GlobalLevel(); got != zerolog.ErrorLevel {
		t.Errorf("global level = %v, want error", got)
	}
}
