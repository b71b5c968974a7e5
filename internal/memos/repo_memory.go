package memos

import (
	"context"
	"errors"
	"sort"
	"sync"

	"creditmemo-backend/internal/documents"
)

// DocumentGetter is the part of the document registry the memory repo needs
// to enforce that memos reference existing documents.
type DocumentGetter interface {
	GetByID(ctx context.Context, id string) (documents.Document, error)
}

type memoryEntry struct {
	memo Memo
	seq  int
}

// MemoryRepo stores memos in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	seq  int
	byID map[string]memoryEntry
	Docs DocumentGetter
}

// NewMemoryRepo constructs a MemoryRepo. docs may be nil, in which case
// document existence is not checked.
func NewMemoryRepo(docs DocumentGetter) *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]memoryEntry),
		Docs: docs,
	}
}

// documentGuard is implemented by document registries that can hold a
// document in place while a dependent record is written.
type documentGuard interface {
	WithDocument(ctx context.Context, id string, fn func() error) error
}

// Create stores the memo. When Docs is a documentGuard the existence check
// and the insert happen under the document registry's lock, so a concurrent
// document delete either sees the memo or makes Create fail.
func (r *MemoryRepo) Create(ctx context.Context, memo Memo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if guard, ok := r.Docs.(documentGuard); ok {
		err := guard.WithDocument(ctx, memo.DocumentID, func() error {
			r.insert(memo)
			return nil
		})
		if errors.Is(err, documents.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	if r.Docs != nil {
		if _, err := r.Docs.GetByID(ctx, memo.DocumentID); err != nil {
			if errors.Is(err, documents.ErrNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
	}
	r.insert(memo)
	return nil
}

func (r *MemoryRepo) insert(memo Memo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.byID[memo.ID] = memoryEntry{memo: memo, seq: r.seq}
}

// GetByID returns a memo by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Memo, error) {
	if err := ctx.Err(); err != nil {
		return Memo{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byID[id]
	if !ok {
		return Memo{}, ErrNotFound
	}
	return entry.memo, nil
}

// List returns memos oldest first with limit/offset. A limit of zero returns
// every memo after offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	all := r.sorted(func(Memo) bool { return true })
	if offset >= len(all) {
		return []Memo{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// ListByDocument returns the memos of one document, oldest first.
func (r *MemoryRepo) ListByDocument(ctx context.Context, documentID string) ([]Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.sorted(func(m Memo) bool { return m.DocumentID == documentID }), nil
}

func (r *MemoryRepo) sorted(keep func(Memo) bool) []Memo {
	r.mu.RLock()
	entries := make([]memoryEntry, 0, len(r.byID))
	for _, e := range r.byID {
		if keep(e.memo) {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].memo.CreatedAt.Equal(entries[j].memo.CreatedAt) {
			return entries[i].memo.CreatedAt.Before(entries[j].memo.CreatedAt)
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]Memo, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.memo)
	}
	return out
}

// Delete removes a memo.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// DeleteByDocument removes every memo of a document.
func (r *MemoryRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.byID {
		if e.memo.DocumentID == documentID {
			delete(r.byID, id)
		}
	}
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
