package generation

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	job Job
	seq int
}

// MemoryRepo stores generation jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	seq  int
	byID map[string]memoryEntry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]memoryEntry)}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.Status == "" {
		job.Status = StatusRequested
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.byID[job.ID] = memoryEntry{job: job, seq: r.seq}
	return nil
}

// GetByID returns a job by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return entry.job, nil
}

// ListByDocument returns the jobs of a document, oldest first.
func (r *MemoryRepo) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	entries := make([]memoryEntry, 0)
	for _, e := range r.byID {
		if e.job.DocumentID == documentID {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].job.CreatedAt.Equal(entries[j].job.CreatedAt) {
			return entries[i].job.CreatedAt.Before(entries[j].job.CreatedAt)
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]Job, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.job)
	}
	return out, nil
}

// MarkRunning moves a requested job to running.
func (r *MemoryRepo) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	return r.update(ctx, id, func(job *Job) bool {
		if job.Status != StatusRequested {
			return false
		}
		job.Status = StatusRunning
		job.StartedAt = &startedAt
		return true
	})
}

// MarkCompleted moves a running job to completed.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, id, memoID string, completedAt time.Time) error {
	return r.update(ctx, id, func(job *Job) bool {
		if job.Status != StatusRunning {
			return false
		}
		job.Status = StatusCompleted
		job.MemoID = memoID
		job.CompletedAt = &completedAt
		return true
	})
}

// MarkFailed moves a non-terminal job to failed.
func (r *MemoryRepo) MarkFailed(ctx context.Context, id, code, message string, completedAt time.Time) error {
	return r.update(ctx, id, func(job *Job) bool {
		if job.Terminal() {
			return false
		}
		job.Status = StatusFailed
		job.ErrorCode = code
		job.ErrorMessage = message
		job.CompletedAt = &completedAt
		return true
	})
}

func (r *MemoryRepo) update(ctx context.Context, id string, apply func(*Job) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !apply(&entry.job) {
		return ErrInvalidState
	}
	r.byID[id] = entry
	return nil
}

// DeleteByDocument removes every job of a document.
func (r *MemoryRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.byID {
		if e.job.DocumentID == documentID {
			delete(r.byID, id)
		}
	}
	return nil
}

var _ JobsRepo = (*MemoryRepo)(nil)
