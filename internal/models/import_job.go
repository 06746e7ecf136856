// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// JobState is the lifecycle state of an import job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ImportJob is the durable record of one asynchronous import.
type ImportJob struct {
	ID         string   `json:"id"`
	ServerID   string   `json:"server_id"`
	DaysBack   int      `json:"days_back"`
	MaxResults *int     `json:"max_results,omitempty"`
	Status     JobState `json:"status"`

	TotalFetched   int `json:"total_fetched"`
	TotalProcessed int `json:"total_processed"`
	TotalStored    int `json:"total_stored"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobStatus is the caller-facing view of a job.
type JobStatus struct {
	JobID          string   `json:"job_id"`
	ServerID       string   `json:"server_id"`
	Status         JobState `json:"status"`
	TotalFetched   int      `json:"total_fetched"`
	TotalProcessed int      `json:"total_processed"`
	TotalStored    int      `json:"total_stored"`
	ErrorMessage   string   `json:"error_message,omitempty"`
}

// View projects the job onto its caller-facing view.
func (j *ImportJob) View() *JobStatus {
	return &JobStatus{
		JobID:          j.ID,
		ServerID:       j.ServerID,
		Status:         j.Status,
		TotalFetched:   j.TotalFetched,
		TotalProcessed: j.TotalProcessed,
		TotalStored:    j.TotalStored,
		ErrorMessage:   j.ErrorMessage,
	}
}

// ImportResult is the outcome of a synchronous ImportHistory run.
type ImportResult struct {
	Success        bool          `json:"success"`
	ServerID       string        `json:"server_id"`
	ServerType     string        `json:"server_type"`
	TotalFetched   int           `json:"total_fetched"`
	TotalProcessed int           `json:"total_processed"`
	TotalStored    int           `json:"total_stored"`
	Skipped        int           `json:"skipped"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}
