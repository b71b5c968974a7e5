package generation

import (
	"time"

	"creditmemo-backend/internal/memos"
)

// MemoResponse is returned by a synchronous generation.
type MemoResponse struct {
	MemoID        string    `json:"memoId"`
	DocumentID    string    `json:"documentId"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model,omitempty"`
	MethodologyID string    `json:"methodologyId,omitempty"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"createdAt"`
}

// JobResponse is the outward-facing representation of a generation job.
type JobResponse struct {
	JobID         string     `json:"jobId"`
	DocumentID    string     `json:"documentId"`
	Provider      string     `json:"provider"`
	MethodologyID string     `json:"methodologyId,omitempty"`
	Status        Status     `json:"status"`
	MemoID        string     `json:"memoId,omitempty"`
	ErrorCode     string     `json:"errorCode,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

func toMemoResponse(memo memos.Memo) MemoResponse {
	return MemoResponse{
		MemoID:        memo.ID,
		DocumentID:    memo.DocumentID,
		Provider:      memo.Provider,
		Model:         memo.Model,
		MethodologyID: memo.MethodologyID,
		Content:       memo.Content,
		CreatedAt:     memo.CreatedAt,
	}
}

func toJobResponse(job Job) JobResponse {
	return JobResponse{
		JobID:         job.ID,
		DocumentID:    job.DocumentID,
		Provider:      job.Provider,
		MethodologyID: job.MethodologyID,
		Status:        job.Status,
		MemoID:        job.MemoID,
		ErrorCode:     job.ErrorCode,
		ErrorMessage:  job.ErrorMessage,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}
}
