// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package history

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/models"
)

// DefaultPageSize is the upstream page size used when none is configured.
const DefaultPageSize = 100

// Request describes one import run.
type Request struct {
	DaysBack   int
	MaxResults *int
	PageSize   int

	// Now anchors the cutoff. Zero means time.Now().
	Now time.Time
}

// Cutoff is now minus DaysBack, in UTC.
func (r Request) Cutoff() time.Time {
	now := r.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.UTC().AddDate(0, 0, -r.DaysBack)
}

func (r Request) pageSize() int {
	if r.PageSize <= 0 {
		return DefaultPageSize
	}
	return r.PageSize
}

// Importer fetches a server's history for a window and hands one Outcome
// per qualifying entry to sink, newest first.
//
// Errors returned from Import are whole-job failures. Per-entry problems
// are reported as skip outcomes instead.
type Importer interface {
	Import(ctx context.Context, server *models.MediaServer, req Request, sink Sink) error
}

// Sink consumes outcomes. An error from Accept aborts the import.
type Sink interface {
	Accept(ctx context.Context, outcome Outcome) error
}

// IdentityResolver optionally attaches a resolved identity to a session.
// Failures are logged and never abort an import.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, server *models.MediaServer, session *models.Session) (string, error)
}

// scopeError marks an upstream failure that ends one pagination scope
// (a single user) without failing the job.
type scopeError struct {
	scope string
	err   error
}

func (e *scopeError) Error() string { return e.scope + ": " + e.err.Error() }
func (e *scopeError) Unwrap() error { return e.err }

// window tracks the cutoff and the global result cap for one run.
type window struct {
	cutoff     time.Time
	maxResults *int
	pageSize   int
	emitted    int

	server   *models.MediaServer
	resolver IdentityResolver
}

func newWindow(server *models.MediaServer, req Request, resolver IdentityResolver) *window {
	return &window{
		cutoff:     req.Cutoff(),
		maxResults: req.MaxResults,
		pageSize:   req.pageSize(),
		server:     server,
		resolver:   resolver,
	}
}

// full reports whether the max_results cap has been reached.
func (w *window) full() bool {
	return w.maxResults != nil && w.emitted >= *w.maxResults
}

// nextPageSize shrinks the final page so no more than the cap is requested.
func (w *window) nextPageSize() int {
	if w.maxResults == nil {
		return w.pageSize
	}
	if remaining := *w.maxResults - w.emitted; remaining < w.pageSize {
		return remaining
	}
	return w.pageSize
}

// expired reports whether t falls before the cutoff.
func (w *window) expired(t time.Time) bool {
	return t.Before(w.cutoff)
}

// emit forwards outcome to sink. Fatal outcomes end the run.
func (w *window) emit(ctx context.Context, sink Sink, outcome Outcome) error {
	if outcome.Kind == OutcomeFatal {
		return outcome.Err
	}
	w.emitted++

	if outcome.Kind == OutcomeSession && w.resolver != nil {
		identity, err := w.resolver.ResolveIdentity(ctx, w.server, outcome.Session)
		switch {
		case err != nil:
			logging.Ctx(ctx).Debug().Err(err).Str("session_id", outcome.Session.SessionID).
				Msg("Identity resolution failed")
		case identity != "":
			outcome.Session.Metadata["resolved_identity"] = identity
		}
	}

	return sink.Accept(ctx, outcome)
}

// isScopeError reports whether err only ends the current scope.
func isScopeError(err error) bool {
	var se *scopeError
	return errors.As(err, &se)
}
