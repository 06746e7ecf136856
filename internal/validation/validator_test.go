// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package validation

import (
	"strings"
	"testing"
)

type importBody struct {
	ServerID   string `json:"server_id" validate:"required"`
	DaysBack   int    `json:"days_back" validate:"min=1,max=365"`
	MaxResults *int   `json:"max_results,omitempty" validate:"omitempty,min=1"`
}

type serverBody struct {
	Name       string `koanf:"name" validate:"required,max=5"`
	ServerType string `koanf:"server_type" validate:"required,server_type"`
}

func TestValidateStruct(t *testing.T) {
	zero := 0
	tests := []struct {
		name      string
		input     any
		wantField string
		wantMsg   string
	}{
		{"valid import", &importBody{ServerID: "s", DaysBack: 30}, "", ""},
		{"missing server", &importBody{DaysBack: 30}, "server_id", "server_id is required"},
		{"days too small", &importBody{ServerID: "s", DaysBack: 0}, "days_back", "days_back must be at least 1"},
		{"days too large", &importBody{ServerID: "s", DaysBack: 400}, "days_back", "days_back must be at most 365"},
		{"zero max results", &importBody{ServerID: "s", DaysBack: 1, MaxResults: &zero}, "max_results", "max_results must be at least 1"},
		{"unknown server type", &serverBody{Name: "a", ServerType: "tautulli"}, "server_type", "server_type must be one of"},
		{"long name", &serverBody{Name: "abcdefg", ServerType: "plex"}, "name", "name must be at most 5 characters"},
		{"valid server", &serverBody{Name: "a", ServerType: "emby"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if len(verr.Fields) != 1 || verr.Fields[0].Field != tt.wantField {
				t.Fatalf("fields = %+v, want %s", verr.Fields, tt.wantField)
			}
			if !strings.HasPrefix(verr.Fields[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want prefix %q", verr.Fields[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestToAPIError_MultipleFields(t *testing.T) {
	verr := ValidateStruct(&importBody{})
	if verr == nil {
		t.Fatal("expected validation error")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Code != CodeValidationError {
		t.Errorf("Code = %s", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Errorf("details = %+v, want two fields", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "server_id is required") || !strings.Contains(apiErr.Message, "days_back must be at least 1") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}
