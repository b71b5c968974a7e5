package generation

import (
	"context"
	"time"
)

// JobsRepo persists generation jobs. Transitions are guarded: MarkRunning
// requires requested, MarkCompleted requires running and MarkFailed requires
// a non-terminal job. A guard violation returns ErrInvalidState.
type JobsRepo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, id string) (Job, error)
	ListByDocument(ctx context.Context, documentID string) ([]Job, error)
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	MarkCompleted(ctx context.Context, id, memoID string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, code, message string, completedAt time.Time) error
	DeleteByDocument(ctx context.Context, documentID string) error
}
