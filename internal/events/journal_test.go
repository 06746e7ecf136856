// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/models"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestJournal_LogsTransitions(t *testing.T) {
	bus, err := NewBus(&config.EventsConfig{})
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	defer bus.Close()

	out := &syncBuffer{}
	journal := NewJournal(bus, zerolog.New(out).Level(zerolog.InfoLevel))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- journal.Serve(ctx) }()

	// The subscription is registered asynchronously; republish until seen.
	job := &models.ImportJob{ID: "job-9", ServerID: "jf-1", Status: models.JobFailed, ErrorMessage: "boom"}
	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(out.String(), "job-9") {
		if time.Now().After(deadline) {
			t.Fatal("journal never logged the event")
		}
		bus.JobChanged(ctx, job)
		time.Sleep(20 * time.Millisecond)
	}

	line := out.String()
	if !strings.Contains(line, `"level":"warn"`) || !strings.Contains(line, `"error":"boom"`) {
		t.Errorf("log = %s", line)
	}

	// Queued transitions are debug and filtered at info.
	bus.JobChanged(ctx, &models.ImportJob{ID: "job-10", Status: models.JobQueued})
	time.Sleep(50 * time.Millisecond)
	if strings.Contains(out.String(), "job-10") {
		t.Errorf("queued transition logged at info: %s", out.String())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("journal did not stop")
	}
}

func TestJournal_StopsOnClosedBus(t *testing.T) {
	bus, err := NewBus(&config.EventsConfig{})
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	_ = bus.Close()

	err = NewJournal(bus, zerolog.Nop()).Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() = %v, want ErrDoNotRestart", err)
	}
}
