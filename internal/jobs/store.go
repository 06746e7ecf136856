// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tomtom215/historian/internal/models"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("import job not found")

	// ErrInvalidTransition is returned when a command does not apply to the
	// job's current state.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrJobExists is returned when creating a job whose id is taken.
	ErrJobExists = errors.New("import job already exists")
)

// Store persists job records. Update applies fn atomically with respect to
// other updates of the same job; when fn returns an error nothing is written.
type Store interface {
	Create(ctx context.Context, job *models.ImportJob) error
	Get(ctx context.Context, id string) (*models.ImportJob, error)
	Update(ctx context.Context, id string, fn func(*models.ImportJob) error) (*models.ImportJob, error)
	List(ctx context.Context) ([]*models.ImportJob, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore keeps jobs in process memory. Used by tests and the CLI.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.ImportJob
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.ImportJob)}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, job *models.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return ErrJobExists
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*models.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*models.ImportJob) error) (*models.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	next := cloneJob(current)
	if err := fn(next); err != nil {
		return nil, err
	}
	m.jobs[id] = next
	return cloneJob(next), nil
}

// List implements Store. Jobs are ordered by creation time.
func (m *MemoryStore) List(_ context.Context) ([]*models.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.ImportJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, cloneJob(job))
	}
	sortJobs(out)
	return out, nil
}

// Delete implements Store. Deleting a missing job is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func cloneJob(job *models.ImportJob) *models.ImportJob {
	c := *job
	if job.MaxResults != nil {
		v := *job.MaxResults
		c.MaxResults = &v
	}
	if job.StartedAt != nil {
		v := *job.StartedAt
		c.StartedAt = &v
	}
	if job.FinishedAt != nil {
		v := *job.FinishedAt
		c.FinishedAt = &v
	}
	return &c
}

func sortJobs(jobs []*models.ImportJob) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
