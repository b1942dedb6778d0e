package repository

import (
	"context"
	"sync"

	"github.com/iconidentify/vidgrab/internal/domain"
)

// DefaultJobHistory is the number of jobs kept when no limit is given.
const DefaultJobHistory = 1000

// InMemoryJobRepository implements JobRepository with a bounded history.
// The oldest job is evicted once the limit is reached.
type InMemoryJobRepository struct {
	mu    sync.RWMutex
	jobs  map[domain.JobID]*domain.Job
	order []domain.JobID // insertion order, oldest first
	limit int
}

// NewInMemoryJobRepository creates a new in-memory job repository.
func NewInMemoryJobRepository(limit int) *InMemoryJobRepository {
	if limit <= 0 {
		limit = DefaultJobHistory
	}
	return &InMemoryJobRepository{
		jobs:  make(map[domain.JobID]*domain.Job),
		order: make([]domain.JobID, 0),
		limit: limit,
	}
}

// Save inserts or replaces a job.
func (r *InMemoryJobRepository) Save(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *job
	if _, exists := r.jobs[job.ID]; !exists {
		r.order = append(r.order, job.ID)
	}
	r.jobs[job.ID] = &cp

	for len(r.order) > r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.jobs, oldest)
	}

	return nil
}

// Get retrieves a job by ID.
func (r *InMemoryJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// Recent returns up to n jobs, newest first.
func (r *InMemoryJobRepository) Recent(ctx context.Context, n int) ([]*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.order) {
		n = len(r.order)
	}
	result := make([]*domain.Job, 0, n)
	for i := len(r.order) - 1; i >= 0 && len(result) < n; i-- {
		cp := *r.jobs[r.order[i]]
		result = append(result, &cp)
	}
	return result, nil
}

// Stats returns job outcome statistics.
func (r *InMemoryJobRepository) Stats(ctx context.Context) (*JobStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &JobStats{}
	for _, job := range r.jobs {
		switch job.Status {
		case domain.JobStatusRunning:
			stats.Running++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
			if job.ErrorKind == domain.KindSiteBlocking {
				stats.Blocked++
			}
		}
	}

	return stats, nil
}

// Clear removes all jobs (useful for testing).
func (r *InMemoryJobRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = make(map[domain.JobID]*domain.Job)
	r.order = make([]domain.JobID, 0)
}
