package video

import (
	"context"

	"longvideo/internal/domain"
)

// Media references a previously generated clip used as the starting point of
// an extension. URI is the service-side reference when known; Path is the
// local copy written by the orchestrator.
type Media struct {
	URI      string
	Path     string
	MimeType string
}

// Job describes one generation request sent to the external service.
type Job struct {
	Prompt          string
	Config          domain.GenerationConfig
	DurationSeconds int
	Source          *Media
	RequestID       string
}

// Handle identifies an in-flight job on the external service.
type Handle struct {
	Name string
}

// Result references the finished media of a job.
type Result struct {
	URI      string
	MimeType string
}

// PollResult is the state of a job at the time of the poll. Failure is set
// when the service reports the job as failed.
type PollResult struct {
	Done    bool
	Result  *Result
	Failure string
}

// Gateway is the create/poll/download protocol of the external generation
// service. Poll must not have side effects on the job and Download must
// return the same bytes for the same Result.
type Gateway interface {
	Submit(ctx context.Context, job Job) (Handle, error)
	Poll(ctx context.Context, handle Handle) (PollResult, error)
	Download(ctx context.Context, result Result) ([]byte, error)
}
