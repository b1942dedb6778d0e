package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidRequest is returned when a request is missing a required field.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSiteBlocking is returned when the remote platform rejected the
	// extraction engine with an automated-access challenge.
	ErrSiteBlocking = errors.New("site is blocking automated access")

	// ErrExtractionFailed is returned for any other extraction engine failure.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrDownloadIncomplete is returned when the engine reported success but
	// no artifact exists on disk.
	ErrDownloadIncomplete = errors.New("file not found")

	// ErrArtifactNotFound is returned when an artifact filename does not
	// resolve to a regular file inside the store.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNotAuthenticated is returned by the credential store when no usable
	// credential is available.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrJobNotFound is returned when a job result cannot be found.
	ErrJobNotFound = errors.New("job not found")
)

// ErrorKind names the taxonomy bucket an error belongs to.
type ErrorKind string

const (
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindSiteBlocking       ErrorKind = "site_blocking"
	KindExtractionFailure  ErrorKind = "extraction_failure"
	KindDownloadIncomplete ErrorKind = "download_incomplete"
	KindNotFound           ErrorKind = "not_found"
	KindInternalFault      ErrorKind = "internal_fault"
)

// KindOf classifies err into the error taxonomy. Anything that does not wrap
// a known sentinel is an internal fault.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrSiteBlocking):
		return KindSiteBlocking
	case errors.Is(err, ErrExtractionFailed):
		return KindExtractionFailure
	case errors.Is(err, ErrDownloadIncomplete):
		return KindDownloadIncomplete
	case errors.Is(err, ErrArtifactNotFound):
		return KindNotFound
	default:
		return KindInternalFault
	}
}

// JobError wraps an error with download job context.
type JobError struct {
	JobID JobID
	Op    string
	Err   error
}

func (e *JobError) Error() string {
	if e.JobID != "" {
		return e.Op + " [" + e.JobID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// NewJobError creates a new JobError.
func NewJobError(jobID JobID, op string, err error) *JobError {
	return &JobError{
		JobID: jobID,
		Op:    op,
		Err:   err,
	}
}

// ExtractionError carries the engine's own message alongside the taxonomy
// sentinel it was classified as.
type ExtractionError struct {
	Kind    error
	Message string
}

func (e *ExtractionError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Kind
}

// EngineMessage returns the engine-supplied message carried by err, or the
// error text itself when err carries none.
func EngineMessage(err error) string {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
