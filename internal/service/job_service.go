package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/repository"
)

// DefaultJobChunk is how many ticks a job advances between progress updates.
// Each chunk is stored and streamed like a step request.
const DefaultJobChunk = 100

// JobService advances runs in the background and tracks progress
type JobService struct {
	repo  *repository.JobRepository
	runs  *RunService
	chunk int

	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
	wg      sync.WaitGroup
}

// NewJobService creates a new job service
func NewJobService(repo *repository.JobRepository, runs *RunService) *JobService {
	return &JobService{
		repo:    repo,
		runs:    runs,
		chunk:   DefaultJobChunk,
		cancels: make(map[int64]context.CancelFunc),
	}
}

// Recover fails the jobs left active by a previous process
func (s *JobService) Recover() error {
	n, err := s.repo.FailActive("interrupted by server restart")
	if err != nil {
		return err
	}
	if n > 0 {
		log.Warnf("[JobService] failed %d jobs interrupted by restart", n)
	}
	return nil
}

// Create stores a pending job and starts it
func (s *JobService) Create(runID string, ticks int, createdBy string) (*models.Job, error) {
	if ticks < 1 {
		return nil, fmt.Errorf("ticks must be positive, got %d", ticks)
	}
	if _, err := s.runs.get(runID); err != nil {
		return nil, err
	}

	job := &models.Job{
		RunID:     runID,
		Ticks:     ticks,
		Status:    models.JobStatusPending,
		CreatedBy: createdBy,
	}
	if err := s.repo.Create(job); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(ctx, *job)

	log.Printf("[JobService] job %d: advancing run %s by %d ticks", job.ID, runID, ticks)
	return job, nil
}

// execute advances the run chunk by chunk until the job is done, fails or
// is cancelled
func (s *JobService) execute(ctx context.Context, job models.Job) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[job.ID]; ok {
			cancel()
			delete(s.cancels, job.ID)
		}
		s.mu.Unlock()
	}()

	start, err := s.runs.Snapshot(job.RunID)
	if err != nil {
		s.finish(job.ID, models.JobStatusFailed, 0, err)
		return
	}
	if err := s.repo.MarkAsRunning(job.ID); err != nil {
		log.Errorf("[JobService] job %d: %v", job.ID, err)
	}

	began := time.Now()
	processed := 0
	for processed < job.Ticks {
		if err := ctx.Err(); err != nil {
			s.finish(job.ID, models.JobStatusCancelled, processed, err)
			return
		}

		n := min(s.chunk, job.Ticks-processed)
		snap, err := s.runs.Step(ctx, job.RunID, n)
		if snap != nil {
			processed = int(snap.Tick - start.Tick)
		}
		if err != nil {
			status := models.JobStatusFailed
			if errors.Is(err, context.Canceled) {
				status = models.JobStatusCancelled
			}
			s.finish(job.ID, status, processed, err)
			return
		}

		percent, eta := progress(processed, job.Ticks, time.Since(began))
		if err := s.repo.UpdateProgress(job.ID, processed, percent, eta); err != nil {
			log.Errorf("[JobService] job %d: %v", job.ID, err)
		}
	}

	if err := s.repo.MarkAsCompleted(job.ID, processed); err != nil {
		log.Errorf("[JobService] job %d: %v", job.ID, err)
		return
	}
	log.Printf("[JobService] job %d completed: run %s at tick %d", job.ID, job.RunID, start.Tick+int64(processed))
}

func (s *JobService) finish(id int64, status string, processed int, cause error) {
	if status == models.JobStatusFailed {
		log.Warnf("[JobService] job %d failed after %d ticks: %v", id, processed, cause)
	} else {
		log.Printf("[JobService] job %d %s after %d ticks", id, status, processed)
	}
	if err := s.repo.MarkAsFinished(id, status, processed, cause.Error()); err != nil {
		log.Errorf("[JobService] job %d: %v", id, err)
	}
}

// progress returns the completed percentage and the estimated seconds left
// at the rate observed so far
func progress(processed, total int, elapsed time.Duration) (int, int) {
	if total <= 0 || processed <= 0 {
		return 0, 0
	}
	percent := processed * 100 / total
	perTick := elapsed.Seconds() / float64(processed)
	eta := int(math.Ceil(perTick * float64(total-processed)))
	return percent, eta
}

// Get retrieves a job by ID
func (s *JobService) Get(id int64) (*models.Job, error) {
	job, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", id, ErrJobNotFound)
	}
	return job, nil
}

// List retrieves the jobs of a run
func (s *JobService) List(runID, status string, limit, offset int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByRun(runID, status, limit, offset)
}

// Cancel stops an active job after its current chunk
func (s *JobService) Cancel(id int64) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if !ok || !job.Active() {
		return fmt.Errorf("job %d (status: %s): %w", id, job.Status, ErrJobNotActive)
	}
	cancel()
	return nil
}

// Wait blocks until every started job has ended
func (s *JobService) Wait() {
	s.wg.Wait()
}
