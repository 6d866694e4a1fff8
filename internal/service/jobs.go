package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/logger"
)

// JobRegistry is the process-local table of generation jobs, keyed by job ID
// and searchable by request hash. Jobs are evicted by Sweep once older than
// the retention window. All methods are safe for concurrent use and return
// copies, never the stored jobs.
//
// The registry is not shared between processes; running several API
// instances requires moving it to an external store.
type JobRegistry struct {
	mu        sync.RWMutex
	jobs      map[string]*domain.Job
	retention time.Duration
	now       func() time.Time
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry(retention time.Duration) *JobRegistry {
	return &JobRegistry{
		jobs:      make(map[string]*domain.Job),
		retention: retention,
		now:       time.Now,
	}
}

// Lookup returns a job with the given request hash. A processing job wins over
// a completed one, which wins over a failed one; among equals the newest wins.
func (r *JobRegistry) Lookup(requestHash string) (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job := r.lookupLocked(requestHash, true)
	if job == nil {
		return domain.Job{}, false
	}
	return copyJob(job), true
}

// Create inserts a new processing job for requestHash.
func (r *JobRegistry) Create(requestHash string) domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyJob(r.createLocked(requestHash))
}

// Acquire atomically returns the live job for requestHash or creates one.
// A processing or completed job is returned with created=false. When only
// failed jobs (or none) exist, a new processing job is created.
func (r *JobRegistry) Acquire(requestHash string) (job domain.Job, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.lookupLocked(requestHash, false); existing != nil {
		return copyJob(existing), false
	}
	return copyJob(r.createLocked(requestHash)), true
}

// Get returns the job with the given ID.
func (r *JobRegistry) Get(id string) (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return copyJob(job), true
}

// Complete marks a processing job completed. The last URL becomes the result URL.
func (r *JobRegistry) Complete(id string, urls []string) error {
	return r.finish(id, func(job *domain.Job) {
		job.Status = domain.JobStatusCompleted
		job.DocumentURLs = append([]string(nil), urls...)
		if len(urls) > 0 {
			job.ResultURL = urls[len(urls)-1]
		}
	})
}

// Fail marks a processing job failed with message.
func (r *JobRegistry) Fail(id, message string) error {
	return r.finish(id, func(job *domain.Job) {
		job.Status = domain.JobStatusFailed
		job.Error = message
	})
}

// finish applies the single allowed transition out of processing.
func (r *JobRegistry) finish(id string, apply func(*domain.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.NewNotFoundError("job %s not found", id)
	}
	if job.Status.IsTerminal() {
		return domain.NewConflictError(nil, "job %s is already %s", id, job.Status)
	}
	apply(job)
	job.UpdatedAt = r.now()
	return nil
}

// Sweep removes jobs created more than the retention window ago and returns
// how many were removed.
func (r *JobRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.retention)
	removed := 0
	for id, job := range r.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Stats counts jobs per status.
func (r *JobRegistry) Stats() map[domain.JobStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[domain.JobStatus]int{
		domain.JobStatusProcessing: 0,
		domain.JobStatusCompleted:  0,
		domain.JobStatusFailed:     0,
	}
	for _, job := range r.jobs {
		stats[job.Status]++
	}
	return stats
}

// StartSweeper runs Sweep every interval until ctx is done.
func (r *JobRegistry) StartSweeper(ctx context.Context, interval time.Duration) {
	ctx = logger.SetComponent(ctx, "job_registry")
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := r.Sweep()
				stats := r.Stats()
				logger.With(logger.Fields{
					logger.FieldCount: removed,
					"processing":      stats[domain.JobStatusProcessing],
					"completed":       stats[domain.JobStatusCompleted],
					"failed":          stats[domain.JobStatusFailed],
				}).Debug(ctx, "Job registry swept")
			}
		}
	}()
}

func (r *JobRegistry) createLocked(requestHash string) *domain.Job {
	now := r.now()
	job := &domain.Job{
		ID:          uuid.New().String(),
		Status:      domain.JobStatusProcessing,
		RequestHash: requestHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.jobs[job.ID] = job
	return job
}

func (r *JobRegistry) lookupLocked(requestHash string, includeFailed bool) *domain.Job {
	var best *domain.Job
	for _, job := range r.jobs {
		if job.RequestHash != requestHash {
			continue
		}
		if job.Status == domain.JobStatusFailed && !includeFailed {
			continue
		}
		if best == nil || rank(job.Status) > rank(best.Status) ||
			(rank(job.Status) == rank(best.Status) && job.CreatedAt.After(best.CreatedAt)) {
			best = job
		}
	}
	return best
}

func rank(s domain.JobStatus) int {
	switch s {
	case domain.JobStatusProcessing:
		return 2
	case domain.JobStatusCompleted:
		return 1
	default:
		return 0
	}
}

func copyJob(job *domain.Job) domain.Job {
	c := *job
	c.DocumentURLs = append([]string(nil), job.DocumentURLs...)
	return c
}
