package generation

import "time"

// Status is the lifecycle state of a generation job.
type Status string

const (
	StatusRequested Status = "requested"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Error codes recorded on failed jobs.
const (
	ErrorCodeValidation       = "validation_error"
	ErrorCodeInvalidState     = "invalid_state"
	ErrorCodeGenerationFailed = "generation_failed"
	ErrorCodeRateLimited      = "rate_limited"
	ErrorCodeInternal         = "internal_error"
)

// Request asks for one memo for a document from one provider. Empty
// Provider selects the default provider and empty MethodologyID the
// built-in methodology.
type Request struct {
	DocumentID    string
	Provider      string
	MethodologyID string
}

// Job is a persisted asynchronous generation request.
type Job struct {
	ID            string
	DocumentID    string
	Provider      string
	MethodologyID string
	Status        Status
	MemoID        string
	ErrorCode     string
	ErrorMessage  string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Terminal reports whether the job can no longer change state.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
