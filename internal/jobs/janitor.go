// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/metrics"
)

// DefaultCleanupCron runs the janitor hourly.
const DefaultCleanupCron = "0 * * * *"

// Janitor periodically purges old failed jobs. It runs as a supervised
// service. Completed jobs never reach it because the dispatcher discards
// them once finalized.
type Janitor struct {
	tracker   *Tracker
	retention time.Duration
	cron      string
	logger    zerolog.Logger
}

// NewJanitor creates a janitor. A zero retention disables purging.
func NewJanitor(tracker *Tracker, retention time.Duration, cron string) *Janitor {
	if cron == "" {
		cron = DefaultCleanupCron
	}
	return &Janitor{
		tracker:   tracker,
		retention: retention,
		cron:      cron,
		logger:    logging.WithComponent("job-janitor"),
	}
}

// RunOnce purges failed jobs older than the retention.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	if j.retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-j.retention)
	purged, err := j.tracker.PurgeFailed(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge failed jobs: %w", err)
	}
	if purged > 0 {
		metrics.JobStoreFailedPurged.Add(float64(purged))
		j.logger.Info().Int("purged", purged).Time("cutoff", cutoff).Msg("Purged failed import jobs")
	}
	return purged, nil
}

// Serve implements suture.Service.
func (j *Janitor) Serve(ctx context.Context) error {
	if j.retention <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.CronJob(j.cron, false),
		gocron.NewTask(func() {
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error().Err(err).Msg("Job janitor run failed")
			}
		}),
		gocron.WithName("purge-failed-jobs"),
		gocron.WithTags("jobs"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule janitor %q: %w", j.cron, err)
	}

	j.logger.Info().Str("cron", j.cron).Dur("retention", j.retention).Msg("Job janitor started")
	scheduler.Start()

	<-ctx.Done()
	if err := scheduler.Shutdown(); err != nil {
		j.logger.Warn().Err(err).Msg("Janitor scheduler shutdown error")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (j *Janitor) String() string {
	return "job-janitor"
}
