// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CodeUnavailable is returned when a dependency fails readiness.
const CodeUnavailable = "UNAVAILABLE"

// HealthResponse is returned by the health routes.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// HealthHandlers serves liveness and readiness.
type HealthHandlers struct {
	db      Pinger
	timeout time.Duration
}

// NewHealthHandlers creates the handlers. db may be nil, in which case
// readiness always succeeds.
func NewHealthHandlers(db Pinger) *HealthHandlers {
	return &HealthHandlers{db: db, timeout: 2 * time.Second}
}

// Live handles GET /api/v1/health/live.
func (h *HealthHandlers) Live(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, http.StatusOK, &HealthResponse{Status: "ok"}, time.Now())
}

// Ready handles GET /api/v1/health/ready.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.db == nil {
		respondSuccess(w, http.StatusOK, &HealthResponse{Status: "ok"}, start)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "database unreachable", err)
		return
	}
	respondSuccess(w, http.StatusOK, &HealthResponse{Status: "ok", Database: "ok"}, start)
}
