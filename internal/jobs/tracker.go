// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/models"
)

// Counters are the progress counters carried by a job.
type Counters struct {
	Fetched   int
	Processed int
	Stored    int
}

// Notifier is told about every state transition. Implementations must not
// block for long; failures are logged by the implementation.
type Notifier interface {
	JobChanged(ctx context.Context, job *models.ImportJob)
}

// Tracker applies lifecycle commands to job records. It is the only writer
// of job state, so every transition goes through the legality check here.
type Tracker struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithNotifier publishes transitions to n.
func WithNotifier(n Notifier) TrackerOption {
	return func(t *Tracker) { t.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker over store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Store returns the underlying store.
func (t *Tracker) Store() Store { return t.store }

// Create records a new queued job.
func (t *Tracker) Create(ctx context.Context, serverID string, daysBack int, maxResults *int) (*models.ImportJob, error) {
	now := t.now().UTC()
	job := &models.ImportJob{
		ID:         uuid.NewString(),
		ServerID:   serverID,
		DaysBack:   daysBack,
		MaxResults: maxResults,
		Status:     models.JobQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	t.notify(ctx, job)
	return job, nil
}

// Get returns a job by id.
func (t *Tracker) Get(ctx context.Context, id string) (*models.ImportJob, error) {
	return t.store.Get(ctx, id)
}

// MarkRunning moves a queued job to running and resets its counters.
func (t *Tracker) MarkRunning(ctx context.Context, id string) (*models.ImportJob, error) {
	job, err := t.transition(ctx, id, func(job *models.ImportJob, now time.Time) error {
		if job.Status != models.JobQueued {
			return invalid(job, models.JobRunning)
		}
		job.Status = models.JobRunning
		job.TotalFetched, job.TotalProcessed, job.TotalStored = 0, 0, 0
		job.ErrorMessage = ""
		job.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.notify(ctx, job)
	return job, nil
}

// RecordProgress raises the counters of a running job. Counters never move
// backwards.
func (t *Tracker) RecordProgress(ctx context.Context, id string, c Counters) error {
	_, err := t.transition(ctx, id, func(job *models.ImportJob, _ time.Time) error {
		if job.Status != models.JobRunning {
			return notRunning(job)
		}
		raise(job, c)
		return nil
	})
	return err
}

// RecordError stores the most recent non-fatal error on a running job.
func (t *Tracker) RecordError(ctx context.Context, id, message string) error {
	_, err := t.transition(ctx, id, func(job *models.ImportJob, _ time.Time) error {
		if job.Status != models.JobRunning {
			return notRunning(job)
		}
		job.ErrorMessage = message
		return nil
	})
	return err
}

// MarkCompleted finishes a running job with its final counters.
func (t *Tracker) MarkCompleted(ctx context.Context, id string, c Counters) (*models.ImportJob, error) {
	job, err := t.transition(ctx, id, func(job *models.ImportJob, now time.Time) error {
		if job.Status != models.JobRunning {
			return invalid(job, models.JobCompleted)
		}
		raise(job, c)
		job.Status = models.JobCompleted
		job.FinishedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.notify(ctx, job)
	return job, nil
}

// MarkFailed finishes a queued or running job with an error message.
func (t *Tracker) MarkFailed(ctx context.Context, id, message string) (*models.ImportJob, error) {
	job, err := t.transition(ctx, id, func(job *models.ImportJob, now time.Time) error {
		if job.Status.Terminal() {
			return invalid(job, models.JobFailed)
		}
		job.Status = models.JobFailed
		job.ErrorMessage = message
		job.FinishedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.notify(ctx, job)
	return job, nil
}

// Discard deletes a completed job. Completed jobs are not retained; failed
// jobs stay until PurgeFailed removes them.
func (t *Tracker) Discard(ctx context.Context, id string) error {
	job, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != models.JobCompleted {
		return fmt.Errorf("%w: job %s is %s, only completed jobs are discarded", ErrInvalidTransition, job.ID, job.Status)
	}
	return t.store.Delete(ctx, id)
}

// PurgeFailed deletes failed jobs that finished before cutoff.
func (t *Tracker) PurgeFailed(ctx context.Context, cutoff time.Time) (int, error) {
	all, err := t.store.List(ctx)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, job := range all {
		if job.Status != models.JobFailed || job.FinishedAt == nil || !job.FinishedAt.Before(cutoff) {
			continue
		}
		if err := t.store.Delete(ctx, job.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("job_id", job.ID).Msg("Failed to purge job")
			continue
		}
		purged++
	}
	return purged, nil
}

// FailInterrupted marks jobs left queued or running by a previous process as
// failed. It runs once at startup, before any worker picks up new tasks.
func (t *Tracker) FailInterrupted(ctx context.Context) (int, error) {
	all, err := t.store.List(ctx)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, job := range all {
		if job.Status.Terminal() {
			continue
		}
		if _, err := t.MarkFailed(ctx, job.ID, "interrupted by restart"); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark interrupted job")
			continue
		}
		failed++
	}
	return failed, nil
}

func (t *Tracker) transition(ctx context.Context, id string, fn func(*models.ImportJob, time.Time) error) (*models.ImportJob, error) {
	return t.store.Update(ctx, id, func(job *models.ImportJob) error {
		now := t.now().UTC()
		if err := fn(job, now); err != nil {
			return err
		}
		job.UpdatedAt = now
		return nil
	})
}

func (t *Tracker) notify(ctx context.Context, job *models.ImportJob) {
	if t.notifier != nil {
		t.notifier.JobChanged(ctx, job)
	}
}

func invalid(job *models.ImportJob, to models.JobState) error {
	return fmt.Errorf("%w: job %s is %s, cannot move to %s", ErrInvalidTransition, job.ID, job.Status, to)
}

func notRunning(job *models.ImportJob) error {
	return fmt.Errorf("%w: job %s is %s, not running", ErrInvalidTransition, job.ID, job.Status)
}

func raise(job *models.ImportJob, c Counters) {
	job.TotalFetched = max(job.TotalFetched, c.Fetched)
	job.TotalProcessed = max(job.TotalProcessed, c.Processed)
	job.TotalStored = max(job.TotalStored, c.Stored)
}
