package library

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores library items in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	seq  int
	byID map[string]memoryEntry
}

type memoryEntry struct {
	item Item
	seq  int
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]memoryEntry)}
}

// Create stores an item.
func (r *MemoryRepo) Create(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.byID[item.ID] = memoryEntry{item: item, seq: r.seq}
	return nil
}

// GetByID returns an item of the given kind.
func (r *MemoryRepo) GetByID(ctx context.Context, kind Kind, id string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok || e.item.Kind != kind {
		return Item{}, ErrNotFound
	}
	return e.item, nil
}

// List returns the items of a kind oldest first.
func (r *MemoryRepo) List(ctx context.Context, kind Kind) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	entries := make([]memoryEntry, 0, len(r.byID))
	for _, e := range r.byID {
		if e.item.Kind == kind {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].item.CreatedAt.Equal(entries[j].item.CreatedAt) {
			return entries[i].item.CreatedAt.Before(entries[j].item.CreatedAt)
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.item)
	}
	return out, nil
}

// Delete removes an item of the given kind.
func (r *MemoryRepo) Delete(ctx context.Context, kind Kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok || e.item.Kind != kind {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
