package domain

import (
	"time"
)

// JobID is a unique identifier for a download job. It doubles as the
// artifact filename stem.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job records the outcome of one download invocation.
type Job struct {
	ID         JobID     `json:"id"`
	URL        string    `json:"url"`
	FormatID   string    `json:"format_id"`
	Status     JobStatus `json:"status"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	LastError  string    `json:"error,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Size       int64     `json:"size,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewJob creates a running job for a download request.
func NewJob(id JobID, req DownloadRequest) *Job {
	return &Job{
		ID:        id,
		URL:       req.URL,
		FormatID:  req.FormatID,
		Status:    JobStatusRunning,
		CreatedAt: time.Now(),
	}
}

// MarkCompleted records the artifact produced by the job.
func (j *Job) MarkCompleted(filename string, size int64) {
	j.Status = JobStatusCompleted
	j.Filename = filename
	j.Size = size
	j.FinishedAt = time.Now()
}

// MarkFailed records the failure that ended the job.
func (j *Job) MarkFailed(err error) {
	j.Status = JobStatusFailed
	j.ErrorKind = KindOf(err)
	j.LastError = err.Error()
	j.FinishedAt = time.Now()
}

// Done reports whether the job has finished.
func (j *Job) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
