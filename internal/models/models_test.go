// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestJobStateTerminal(t *testing.T) {
	tests := []struct {
		state JobState
		want  bool
	}{
		{JobQueued, false},
		{JobRunning, false},
		{JobCompleted, true},
		{JobFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestImportJobView(t *testing.T) {
	now := time.Now()
	job := &ImportJob{
		ID:             "job-1",
		ServerID:       "plex-1",
		DaysBack:       30,
		Status:         JobFailed,
		TotalFetched:   12,
		TotalProcessed: 10,
		TotalStored:    7,
		ErrorMessage:   "upstream returned 500",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	got := job.View()
	if got.JobID != "job-1" || got.ServerID != "plex-1" || got.Status != JobFailed {
		t.Errorf("View() = %+v", got)
	}
	if got.TotalFetched != 12 || got.TotalProcessed != 10 || got.TotalStored != 7 {
		t.Errorf("counters = %d/%d/%d, want 12/10/7", got.TotalFetched, got.TotalProcessed, got.TotalStored)
	}
	if got.ErrorMessage != "upstream returned 500" {
		t.Errorf("ErrorMessage = %q", got.ErrorMessage)
	}
}

func TestSessionImportedFrom(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		want    string
	}{
		{"nil metadata", Session{}, ""},
		{"live session", Session{Metadata: map[string]any{"player": "web"}}, ""},
		{"plex import", Session{Metadata: map[string]any{"imported_from": ImportedFromPlex}}, ImportedFromPlex},
		{"wrong type", Session{Metadata: map[string]any{"imported_from": 3}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.ImportedFrom(); got != tt.want {
				t.Errorf("ImportedFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImportedFromTagsCoverServerTypes(t *testing.T) {
	for _, serverType := range SupportedServerTypes {
		want := serverType + "_history"
		found := false
		for _, tag := range ImportedFromTags {
			if tag == want {
				found = true
			}
		}
		if !found {
			t.Errorf("no provenance tag %q for server type %q", want, serverType)
		}
	}
}

func TestMediaServerTokenNotSerialized(t *testing.T) {
	data, err := json.Marshal(&MediaServer{ID: "plex-1", ServerType: ServerTypePlex, Token: "secret-token"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "secret-token") {
		t.Errorf("token leaked into JSON: %s", data)
	}
}

func TestAPIResponseOmitsEmptyError(t *testing.T) {
	data, err := json.Marshal(&APIResponse{Status: "success", Data: map[string]int{"n": 1}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("success response carries an error field: %s", data)
	}
}
