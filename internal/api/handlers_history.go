// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/models"
	"github.com/tomtom215/historian/internal/validation"
)

// maxRequestBody caps import request bodies.
const maxRequestBody = 64 << 10

// Dispatcher is the import service the handlers call. *dispatch.Service
// implements it.
type Dispatcher interface {
	StartAsyncImport(ctx context.Context, serverID string, daysBack int, maxResults *int) (*models.ImportJob, error)
	GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
	ClearHistoricalData(ctx context.Context, serverID string) (int64, error)
	GetImportStatistics(ctx context.Context, serverID string) (*models.ImportStatistics, error)
}

// ImportRequest is the body of POST /api/v1/history/imports.
type ImportRequest struct {
	ServerID   string `json:"server_id" validate:"required,max=64"`
	DaysBack   int    `json:"days_back" validate:"required,min=1"`
	MaxResults *int   `json:"max_results,omitempty" validate:"omitempty,min=1"`
}

// ClearResponse is returned by DELETE .../sessions.
type ClearResponse struct {
	ServerID     string `json:"server_id"`
	DeletedCount int64  `json:"deleted_count"`
}

// HistoryHandlers serves the history import routes.
type HistoryHandlers struct {
	dispatcher Dispatcher
}

// NewHistoryHandlers creates the handlers.
func NewHistoryHandlers(d Dispatcher) *HistoryHandlers {
	return &HistoryHandlers{dispatcher: d}
}

// StartImport handles POST /api/v1/history/imports.
func (h *HistoryHandlers) StartImport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ImportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return
	}

	job, err := h.dispatcher.StartAsyncImport(r.Context(), req.ServerID, req.DaysBack, req.MaxResults)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("job_id", job.ID).Str("server_id", sanitizeLogValue(req.ServerID)).
		Msg("Import accepted")
	w.Header().Set("Location", "/api/v1/history/imports/"+job.ID)
	respondSuccess(w, http.StatusAccepted, job, start)
}

// JobStatus handles GET /api/v1/history/imports/{jobID}.
func (h *HistoryHandlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status, err := h.dispatcher.GetJobStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, status, start)
}

// ClearSessions handles DELETE /api/v1/history/servers/{serverID}/sessions.
func (h *HistoryHandlers) ClearSessions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	serverID := chi.URLParam(r, "serverID")
	deleted, err := h.dispatcher.ClearHistoricalData(r.Context(), serverID)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, &ClearResponse{ServerID: serverID, DeletedCount: deleted}, start)
}

// Statistics handles GET /api/v1/history/servers/{serverID}/statistics.
func (h *HistoryHandlers) Statistics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.dispatcher.GetImportStatistics(r.Context(), chi.URLParam(r, "serverID"))
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, stats, start)
}
