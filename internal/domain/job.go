package domain

import "time"

// JobKind enumerates the render job categories the provider supports.
type JobKind string

const (
	JobKindImage JobKind = "image"
	JobKindVideo JobKind = "video"
)

// JobStatus enumerates render job lifecycle states as observed by polling.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// RenderJob tracks a single asynchronous request to the render provider.
// It lives only for the duration of one generation attempt; a failed or
// timed-out job is never re-polled, a new user action creates a new one.
type RenderJob struct {
	JobID        string
	Kind         JobKind
	Attempt      int
	Deadline     time.Time
	PollInterval time.Duration
	Status       JobStatus
}

// RenderResult is the normalized successful outcome of a render job.
type RenderResult struct {
	PrimaryURL  string
	DownloadURL string
	Metadata    map[string]any
}
