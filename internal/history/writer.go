// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package history

import (
	"context"
	"fmt"

	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/metrics"
	"github.com/tomtom215/historian/internal/models"
)

// DefaultProgressInterval is how many processed sessions pass between
// progress checkpoints.
const DefaultProgressInterval = 25

// SessionStore persists sessions with insert-if-absent semantics.
type SessionStore interface {
	InsertSession(ctx context.Context, session *models.Session) (bool, error)
}

// ProgressRecorder receives checkpoints for one job.
type ProgressRecorder interface {
	RecordProgress(ctx context.Context, jobID string, p Progress) error
	RecordError(ctx context.Context, jobID, message string) error
}

// Progress is a snapshot of a run's counters.
type Progress struct {
	Fetched   int
	Processed int
	Stored    int
	Skipped   int
}

// Writer is the Sink that stores sessions for one job. It is not safe for
// concurrent use; each job owns its writer.
type Writer struct {
	store      SessionStore
	recorder   ProgressRecorder
	jobID      string
	serverType string
	interval   int

	progress Progress
}

// NewWriter creates a writer. recorder may be nil when no job is tracked.
func NewWriter(store SessionStore, recorder ProgressRecorder, jobID, serverType string, interval int) *Writer {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &Writer{
		store:      store,
		recorder:   recorder,
		jobID:      jobID,
		serverType: serverType,
		interval:   interval,
	}
}

// Accept implements Sink.
func (w *Writer) Accept(ctx context.Context, outcome Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if outcome.Kind == OutcomeFatal {
		return outcome.Err
	}

	w.progress.Fetched++
	metrics.ImportSessionsFetched.WithLabelValues(w.serverType).Inc()

	if outcome.Kind == OutcomeSkip {
		w.progress.Skipped++
		metrics.ImportSessionsSkipped.WithLabelValues(w.serverType, outcome.Reason).Inc()
		logging.Ctx(ctx).Debug().Err(outcome.Err).Str("reason", outcome.Reason).
			Msg("Skipped history entry")
		return nil
	}

	w.progress.Processed++
	w.persist(ctx, outcome.Session)

	if w.progress.Processed%w.interval == 0 {
		w.checkpoint(ctx)
	}
	return nil
}

func (w *Writer) persist(ctx context.Context, session *models.Session) {
	inserted, err := w.store.InsertSession(ctx, session)
	if err != nil {
		metrics.ImportPersistErrors.WithLabelValues(w.serverType).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("session_id", session.SessionID).
			Msg("Failed to store imported session")
		if w.recorder != nil {
			msg := fmt.Sprintf("store session %s: %v", session.SessionID, err)
			if recErr := w.recorder.RecordError(ctx, w.jobID, msg); recErr != nil {
				logging.Ctx(ctx).Debug().Err(recErr).Msg("Failed to record job error")
			}
		}
		return
	}
	if inserted {
		w.progress.Stored++
		metrics.ImportSessionsStored.WithLabelValues(w.serverType).Inc()
	}
}

func (w *Writer) checkpoint(ctx context.Context) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.RecordProgress(ctx, w.jobID, w.progress); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to record import progress")
	}
}

// Flush writes a final checkpoint.
func (w *Writer) Flush(ctx context.Context) {
	w.checkpoint(ctx)
}

// Progress returns the current counters.
func (w *Writer) Progress() Progress {
	return w.progress
}
