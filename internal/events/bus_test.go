// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/jobs"
	"github.com/tomtom215/historian/internal/models"
)

func receive(t *testing.T, ch <-chan JobEvent) JobEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job event")
	}
	return JobEvent{}
}

func TestGoChannelBus_PublishesTransitions(t *testing.T) {
	bus, err := NewBus(&config.EventsConfig{})
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	defer bus.Close()

	if bus.Transport() != "gochannel" || bus.Topic() != DefaultTopic {
		t.Errorf("transport = %s topic = %s", bus.Transport(), bus.Topic())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	tracker := jobs.NewTracker(jobs.NewMemoryStore(), jobs.WithNotifier(bus))
	job, err := tracker.Create(ctx, "srv-1", 7, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := tracker.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning() error = %v", err)
	}
	if _, err := tracker.MarkFailed(ctx, job.ID, "upstream unreachable"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	want := []models.JobState{models.JobQueued, models.JobRunning, models.JobFailed}
	for _, state := range want {
		ev := receive(t, events)
		if ev.JobID != job.ID || ev.ServerID != "srv-1" {
			t.Errorf("event = %+v", ev)
		}
		if ev.Status != state {
			t.Errorf("status = %s, want %s", ev.Status, state)
		}
	}
}

func TestGoChannelBus_PreservesTransitionOrder(t *testing.T) {
	bus := NewGoChannelBus("test.order")
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	tracker := jobs.NewTracker(jobs.NewMemoryStore(), jobs.WithNotifier(bus))
	const jobCount = 10
	for i := 0; i < jobCount; i++ {
		job, err := tracker.Create(ctx, "srv-1", 7, nil)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := tracker.MarkRunning(ctx, job.ID); err != nil {
			t.Fatalf("MarkRunning() error = %v", err)
		}
		if _, err := tracker.MarkCompleted(ctx, job.ID, jobs.Counters{Fetched: i, Processed: i, Stored: i}); err != nil {
			t.Fatalf("MarkCompleted() error = %v", err)
		}
	}

	want := []models.JobState{models.JobQueued, models.JobRunning, models.JobCompleted}
	for i := 0; i < jobCount*len(want); i++ {
		ev := receive(t, events)
		if ev.Status != want[i%len(want)] {
			t.Fatalf("event %d status = %s, want %s", i, ev.Status, want[i%len(want)])
		}
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewGoChannelBus("test.topic")
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := bus.Publish(context.Background(), JobEvent{JobID: "j"})
	if !errors.Is(err, ErrBusClosed) {
		t.Errorf("Publish() after Close = %v, want ErrBusClosed", err)
	}
	if _, err := bus.Subscribe(context.Background()); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Subscribe() after Close = %v, want ErrBusClosed", err)
	}

	// JobChanged swallows the error.
	bus.JobChanged(context.Background(), &models.ImportJob{ID: "j"})
}

func startNATS(t *testing.T) string {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("create NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATSBus_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}

	url := startNATS(t)
	bus, err := NewBus(&config.EventsConfig{
		NATSURL:       url,
		Topic:         "history.import.jobs.test",
		MaxReconnects: 1,
		ReconnectWait: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	defer bus.Close()

	if bus.Transport() != "nats" {
		t.Fatalf("transport = %s, want nats", bus.Transport())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	now := time.Now().UTC()
	job := &models.ImportJob{
		ID: "job-nats", ServerID: "srv", Status: models.JobCompleted,
		TotalFetched: 3, TotalProcessed: 3, TotalStored: 2, UpdatedAt: now,
	}

	// Core NATS drops messages published before the subscription is live,
	// so keep publishing until one arrives.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		bus.JobChanged(ctx, job)
		select {
		case ev := <-events:
			if ev.JobID != "job-nats" || ev.Status != models.JobCompleted || ev.TotalStored != 2 {
				t.Errorf("event = %+v", ev)
			}
			if !ev.OccurredAt.Equal(now) {
				t.Errorf("OccurredAt = %v, want %v", ev.OccurredAt, now)
			}
			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("no event received over NATS")
		}
	}
}
