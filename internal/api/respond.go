// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/historian/internal/database"
	"github.com/tomtom215/historian/internal/dispatch"
	"github.com/tomtom215/historian/internal/jobs"
	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/models"
)

// Error codes returned in models.APIError.Code.
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeNotFound              = "NOT_FOUND"
	CodeUnsupportedServerType = "UNSUPPORTED_SERVER_TYPE"
	CodeInternal              = "INTERNAL_ERROR"
)

// sanitizeLogValue escapes control characters so request-derived values
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON writes response with the given status.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, status int, data any, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    apiErr,
	})
}

// respondError writes an error envelope. Server-side failures are logged.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().
			Str("code", sanitizeLogValue(code)).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}
	respondAPIError(w, status, &models.APIError{Code: code, Message: message})
}

// respondDispatchError maps dispatcher and store errors onto HTTP statuses.
func respondDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrInvalidArgument):
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error(), err)
	case errors.Is(err, database.ErrServerNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "server not found", err)
	case errors.Is(err, jobs.ErrJobNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "job not found", err)
	case errors.Is(err, dispatch.ErrUnsupportedServerType):
		respondError(w, r, http.StatusUnprocessableEntity, CodeUnsupportedServerType, err.Error(), err)
	default:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error", err)
	}
}
