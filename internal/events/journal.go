// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/historian/internal/models"
)

// Journal consumes job events from the bus and writes one log line per
// transition. It implements suture.Service.
type Journal struct {
	bus    *Bus
	logger zerolog.Logger
}

// NewJournal creates a journal reading from bus.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewJournal(bus *Bus, logger zerolog.Logger) *Journal {
	return &Journal{bus: bus, logger: logger}
}

// Serve implements suture.Service. It stops for good once the bus is closed.
func (j *Journal) Serve(ctx context.Context) error {
	stream, err := j.bus.Subscribe(ctx)
	if errors.Is(err, ErrBusClosed) {
		return suture.ErrDoNotRestart
	}
	if err != nil {
		return fmt.Errorf("journal subscribe: %w", err)
	}

	for event := range stream {
		j.record(event)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("job event stream ended")
}

func (j *Journal) record(event JobEvent) {
	var e *zerolog.Event
	switch event.Status {
	case models.JobFailed:
		e = j.logger.Warn().Str("error", event.ErrorMessage)
	case models.JobCompleted:
		e = j.logger.Info()
	default:
		e = j.logger.Debug()
	}
	e.Str("job_id", event.JobID).
		Str("server_id", event.ServerID).
		Str("status", string(event.Status)).
		Int("fetched", event.TotalFetched).
		Int("processed", event.TotalProcessed).
		Int("stored", event.TotalStored).
		Time("occurred_at", event.OccurredAt).
		Msg("Import job transition")
}

func (j *Journal) String() string {
	return "job-event-journal"
}
