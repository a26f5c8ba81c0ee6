package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/roadsim-backend-go/internal/models"
)

const jobColumns = `id, run_id, ticks, status, progress_percent, eta_seconds,
	processed_ticks, start_time, end_time, error_message, created_by, created_at, updated_at`

// JobRepository handles database operations for background run jobs
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a pending job
func (r *JobRepository) Create(job *models.Job) error {
	result, err := r.db.Exec(
		`INSERT INTO run_jobs (run_id, ticks, status, created_by) VALUES (?, ?, ?, ?)`,
		job.RunID, job.Ticks, job.Status, job.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	job.ID = id
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	job := &models.Job{}
	err := row.Scan(
		&job.ID,
		&job.RunID,
		&job.Ticks,
		&job.Status,
		&job.ProgressPercent,
		&job.ETASeconds,
		&job.ProcessedTicks,
		&job.StartTime,
		&job.EndTime,
		&job.ErrorMessage,
		&job.CreatedBy,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	return job, err
}

// GetByID retrieves a job; nil when it does not exist
func (r *JobRepository) GetByID(id int64) (*models.Job, error) {
	job, err := scanJob(r.db.QueryRow(`SELECT `+jobColumns+` FROM run_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListByRun retrieves the jobs of a run, newest first, optionally filtered by status
func (r *JobRepository) ListByRun(runID, status string, limit, offset int) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM run_jobs WHERE run_id = ?`
	args := []interface{}{runID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateProgress records how far a running job has come
func (r *JobRepository) UpdateProgress(id int64, processedTicks, progressPercent, etaSeconds int) error {
	_, err := r.db.Exec(
		`UPDATE run_jobs
		SET processed_ticks = ?, progress_percent = ?, eta_seconds = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		processedTicks, progressPercent, etaSeconds, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// MarkAsRunning marks a job as running
func (r *JobRepository) MarkAsRunning(id int64) error {
	_, err := r.db.Exec(
		`UPDATE run_jobs SET status = ?, start_time = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		models.JobStatusRunning, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job as running: %w", err)
	}
	return nil
}

// MarkAsCompleted marks a job as completed
func (r *JobRepository) MarkAsCompleted(id int64, processedTicks int) error {
	_, err := r.db.Exec(
		`UPDATE run_jobs
		SET status = ?, end_time = ?, processed_ticks = ?, progress_percent = 100, eta_seconds = 0,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		models.JobStatusCompleted, time.Now().Unix(), processedTicks, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job as completed: %w", err)
	}
	return nil
}

// MarkAsFinished ends a job with status failed or cancelled
func (r *JobRepository) MarkAsFinished(id int64, status string, processedTicks int, errorMessage string) error {
	_, err := r.db.Exec(
		`UPDATE run_jobs
		SET status = ?, end_time = ?, processed_ticks = ?, error_message = ?, eta_seconds = 0,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, time.Now().Unix(), processedTicks, errorMessage, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job as %s: %w", status, err)
	}
	return nil
}

// FailActive fails every job still pending or running, returning how many
// were affected. Used at startup: runs live in memory and do not survive a
// restart.
func (r *JobRepository) FailActive(reason string) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE run_jobs
		SET status = ?, end_time = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE status IN (?, ?)`,
		models.JobStatusFailed, time.Now().Unix(), reason, models.JobStatusPending, models.JobStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail active jobs: %w", err)
	}
	return result.RowsAffected()
}
