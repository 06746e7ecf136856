// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/historian/internal/history"
	"github.com/tomtom215/historian/internal/jobs"
	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/metrics"
	"github.com/tomtom215/historian/internal/models"
)

// Repository is the persistence the dispatcher needs. *database.DB
// implements it.
type Repository interface {
	history.SessionStore
	GetServer(ctx context.Context, id string) (*models.MediaServer, error)
	DeleteImportedSessions(ctx context.Context, serverID string) (int64, error)
	GetImportStatistics(ctx context.Context, serverID string) (*models.ImportStatistics, error)
}

// Options tunes the dispatcher.
type Options struct {
	PageSize         int
	ProgressInterval int

	// MaxDaysBack bounds days_back. 0 means no upper bound.
	MaxDaysBack int

	// Now overrides the clock used for import cutoffs.
	Now func() time.Time
}

// Service routes import requests to the importer for each server type and
// runs asynchronous imports as background tasks.
type Service struct {
	repo      Repository
	tracker   *jobs.Tracker
	runner    TaskRunner
	importers map[string]history.Importer
	opts      Options
}

// NewService creates a dispatcher. importers is keyed by server type.
func NewService(repo Repository, tracker *jobs.Tracker, runner TaskRunner, importers map[string]history.Importer, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:      repo,
		tracker:   tracker,
		runner:    runner,
		importers: importers,
		opts:      opts,
	}
}

// StartAsyncImport validates the request, records a queued job and submits
// it to the worker pool. Nothing is recorded when validation fails.
func (s *Service) StartAsyncImport(ctx context.Context, serverID string, daysBack int, maxResults *int) (*models.ImportJob, error) {
	if err := s.validate(serverID, daysBack, maxResults); err != nil {
		return nil, err
	}
	if _, _, err := s.resolve(ctx, serverID); err != nil {
		return nil, err
	}

	job, err := s.tracker.Create(ctx, serverID, daysBack, maxResults)
	if err != nil {
		return nil, err
	}

	jobID := job.ID
	task := Task{
		Name: "import:" + jobID,
		Key:  serverID,
		Run: func(taskCtx context.Context) error {
			return s.runJob(taskCtx, jobID, serverID, daysBack, maxResults)
		},
	}
	if err := s.runner.Submit(task); err != nil {
		if _, markErr := s.tracker.MarkFailed(ctx, jobID, "submit failed: "+err.Error()); markErr != nil {
			logging.Ctx(ctx).Warn().Err(markErr).Str("job_id", jobID).Msg("Failed to mark unsubmitted job")
		}
		return nil, fmt.Errorf("submit import job: %w", err)
	}

	logging.Ctx(ctx).Info().Str("job_id", jobID).Str("server_id", serverID).
		Int("days_back", daysBack).Msg("Import job queued")
	return job, nil
}

// ImportHistory runs one import synchronously. Importer failures are
// reported in the result; validation and lookup failures are returned as
// errors. jobID may be empty when no job record tracks the run.
func (s *Service) ImportHistory(ctx context.Context, serverID string, daysBack int, maxResults *int, jobID string) (*models.ImportResult, error) {
	if err := s.validate(serverID, daysBack, maxResults); err != nil {
		return nil, err
	}
	server, importer, err := s.resolve(ctx, serverID)
	if err != nil {
		return nil, err
	}

	var recorder history.ProgressRecorder
	if jobID != "" {
		recorder = trackerRecorder{tracker: s.tracker}
	}
	writer := history.NewWriter(s.repo, recorder, jobID, server.ServerType, s.opts.ProgressInterval)
	req := history.Request{
		DaysBack:   daysBack,
		MaxResults: maxResults,
		PageSize:   s.opts.PageSize,
		Now:        s.opts.Now(),
	}

	log := logging.Ctx(ctx).With().Str("server_id", server.ID).Str("server_type", server.ServerType).Logger()
	log.Info().Time("cutoff", req.Cutoff()).Msg("Starting history import")

	start := time.Now()
	importErr := importer.Import(ctx, server, req, writer)
	writer.Flush(context.WithoutCancel(ctx))

	p := writer.Progress()
	result := &models.ImportResult{
		Success:        importErr == nil,
		ServerID:       server.ID,
		ServerType:     server.ServerType,
		TotalFetched:   p.Fetched,
		TotalProcessed: p.Processed,
		TotalStored:    p.Stored,
		Skipped:        p.Skipped,
		Duration:       time.Since(start),
	}
	if importErr != nil {
		result.Error = importErr.Error()
		log.Warn().Err(importErr).Int("fetched", p.Fetched).Int("stored", p.Stored).
			Msg("History import failed")
		return result, nil
	}

	log.Info().Int("fetched", p.Fetched).Int("processed", p.Processed).Int("stored", p.Stored).
		Int("skipped", p.Skipped).Dur("duration", result.Duration).Msg("History import finished")
	return result, nil
}

// GetJobStatus returns the caller-facing view of a job. Completed jobs are
// discarded, so they report jobs.ErrJobNotFound.
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	job, err := s.tracker.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.View(), nil
}

// ClearHistoricalData deletes every imported session for a server and
// returns how many were removed. Live sessions are untouched.
func (s *Service) ClearHistoricalData(ctx context.Context, serverID string) (int64, error) {
	if serverID == "" {
		return 0, invalidArgument("server id is required")
	}
	n, err := s.repo.DeleteImportedSessions(ctx, serverID)
	if err != nil {
		return 0, err
	}
	logging.Ctx(ctx).Info().Str("server_id", serverID).Int64("deleted", n).Msg("Cleared imported history")
	return n, nil
}

// GetImportStatistics summarizes imported sessions for a server.
func (s *Service) GetImportStatistics(ctx context.Context, serverID string) (*models.ImportStatistics, error) {
	if serverID == "" {
		return nil, invalidArgument("server id is required")
	}
	return s.repo.GetImportStatistics(ctx, serverID)
}

func (s *Service) validate(serverID string, daysBack int, maxResults *int) error {
	if serverID == "" {
		return invalidArgument("server id is required")
	}
	if daysBack <= 0 {
		return invalidArgument("days_back must be positive, got %d", daysBack)
	}
	if s.opts.MaxDaysBack > 0 && daysBack > s.opts.MaxDaysBack {
		return invalidArgument("days_back must be at most %d, got %d", s.opts.MaxDaysBack, daysBack)
	}
	if maxResults != nil && *maxResults <= 0 {
		return invalidArgument("max_results must be positive, got %d", *maxResults)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, serverID string) (*models.MediaServer, history.Importer, error) {
	server, err := s.repo.GetServer(ctx, serverID)
	if err != nil {
		return nil, nil, err
	}
	importer, ok := s.importers[server.ServerType]
	if !ok {
		return nil, nil, &UnsupportedServerTypeError{ServerID: server.ID, ServerType: server.ServerType}
	}
	return server, importer, nil
}

// runJob drives one job through running to a terminal state. Completed
// jobs are discarded once finalized; failed jobs are kept.
func (s *Service) runJob(ctx context.Context, jobID, serverID string, daysBack int, maxResults *int) (err error) {
	ctx = logging.ContextWithJobID(ctx, jobID)
	log := logging.Ctx(ctx)
	final := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		s.fail(final, jobID, "unknown", time.Time{}, "job not started: "+context.Cause(ctx).Error())
		return context.Cause(ctx)
	}

	job, err := s.tracker.MarkRunning(ctx, jobID)
	if err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	started := time.Now()
	if job.StartedAt != nil {
		started = *job.StartedAt
	}

	metrics.ImportJobsActive.Inc()
	defer metrics.ImportJobsActive.Dec()

	serverType := "unknown"
	defer func() {
		if r := recover(); r != nil {
			s.fail(final, jobID, serverType, started, fmt.Sprintf("import panicked: %v", r))
			err = fmt.Errorf("job %s panicked: %v", jobID, r)
		}
	}()

	result, err := s.ImportHistory(ctx, serverID, daysBack, maxResults, jobID)
	if err != nil {
		s.fail(final, jobID, serverType, started, err.Error())
		return err
	}
	serverType = result.ServerType

	if !result.Success {
		s.fail(final, jobID, serverType, started, result.Error)
		return errors.New(result.Error)
	}

	counters := jobs.Counters{
		Fetched:   result.TotalFetched,
		Processed: result.TotalProcessed,
		Stored:    result.TotalStored,
	}
	if _, err := s.tracker.MarkCompleted(final, jobID, counters); err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	metrics.RecordJobFinished(serverType, string(models.JobCompleted), time.Since(started))

	if err := s.tracker.Discard(final, jobID); err != nil {
		log.Warn().Err(err).Msg("Failed to discard completed job")
	}
	return nil
}

func (s *Service) fail(ctx context.Context, jobID, serverType string, started time.Time, message string) {
	if _, err := s.tracker.MarkFailed(ctx, jobID, message); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to mark job failed")
		return
	}
	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = time.Since(started)
	}
	metrics.RecordJobFinished(serverType, string(models.JobFailed), elapsed)
}

// trackerRecorder adapts a jobs.Tracker to history.ProgressRecorder.
type trackerRecorder struct {
	tracker *jobs.Tracker
}

func (r trackerRecorder) RecordProgress(ctx context.Context, jobID string, p history.Progress) error {
	return r.tracker.RecordProgress(ctx, jobID, jobs.Counters{
		Fetched:   p.Fetched,
		Processed: p.Processed,
		Stored:    p.Stored,
	})
}

func (r trackerRecorder) RecordError(ctx context.Context, jobID, message string) error {
	return r.tracker.RecordError(ctx, jobID, message)
}
