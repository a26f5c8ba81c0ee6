package models

import "time"

// Job is a background advance of a run by a fixed number of ticks
type Job struct {
	ID int64 `json:"id" db:"id"`

	RunID string `json:"run_id" db:"run_id"`
	Ticks int    `json:"ticks" db:"ticks"` // requested

	// Status
	Status          string `json:"status" db:"status"` // pending, running, completed, failed, cancelled
	ProgressPercent int    `json:"progress_percent" db:"progress_percent"`
	ETASeconds      int    `json:"eta_seconds,omitempty" db:"eta_seconds"`

	// Execution info
	ProcessedTicks int    `json:"processed_ticks" db:"processed_ticks"`
	StartTime      int64  `json:"start_time,omitempty" db:"start_time"` // Unix timestamp
	EndTime        int64  `json:"end_time,omitempty" db:"end_time"`     // Unix timestamp
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// JobStatus constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Active reports whether the job may still make progress
func (j *Job) Active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// CreateJobRequest is the body of POST /api/v1/runs/:id/jobs
type CreateJobRequest struct {
	Ticks int `json:"ticks" binding:"required,min=1,max=10000000"`
}
