package repository

import (
	"context"

	"github.com/iconidentify/vidgrab/internal/domain"
)

// ArtifactIndex maps job ids to artifact records.
type ArtifactIndex interface {
	// Put inserts or replaces the record for artifact.JobID.
	Put(ctx context.Context, artifact domain.Artifact) error

	// Get returns the record for a job id, or domain.ErrArtifactNotFound.
	Get(ctx context.Context, id domain.JobID) (*domain.Artifact, error)

	// Delete removes the record for a job id. Missing records are not an error.
	Delete(ctx context.Context, id domain.JobID) error

	// List returns all records, newest first.
	List(ctx context.Context) ([]domain.Artifact, error)

	// Close releases backend resources.
	Close() error
}

// JobRepository records the outcome of download jobs.
type JobRepository interface {
	// Save inserts or replaces a job.
	Save(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// Recent returns up to n jobs, newest first.
	Recent(ctx context.Context, n int) ([]*domain.Job, error)

	// Stats returns job outcome statistics.
	Stats(ctx context.Context) (*JobStats, error)
}

// JobStats contains job outcome counters.
type JobStats struct {
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Blocked   int `json:"blocked"`
}
