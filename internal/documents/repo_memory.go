package documents

import (
	"context"
	"sort"
	"sync"
)

type memoryEntry struct {
	doc Document
	seq int
}

// MemoryRepo is an in-memory implementation of DocumentsRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	seq  int
	data map[string]memoryEntry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]memoryEntry),
	}
}

func cloneDocument(doc Document) Document {
	doc.Financials = doc.Financials.Clone()
	if doc.ExtractedAt != nil {
		at := *doc.ExtractedAt
		doc.ExtractedAt = &at
	}
	return doc
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.ExtractionStatus == "" {
		doc.ExtractionStatus = StatusUploaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.data[doc.ID] = memoryEntry{doc: cloneDocument(doc), seq: r.seq}
	return nil
}

// GetByID returns a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(entry.doc), nil
}

// List returns documents oldest first, honoring limit/offset. A limit of
// zero returns every document after offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	entries := make([]memoryEntry, 0, len(r.data))
	for _, e := range r.data {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].doc.CreatedAt.Equal(entries[j].doc.CreatedAt) {
			return entries[i].doc.CreatedAt.Before(entries[j].doc.CreatedAt)
		}
		return entries[i].seq < entries[j].seq
	})

	if offset >= len(entries) {
		return []Document{}, nil
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]Document, 0, end-offset)
	for _, e := range entries[offset:end] {
		out = append(out, cloneDocument(e.doc))
	}
	return out, nil
}

// WithDocument runs fn while holding a read lock on the registry, failing
// with ErrNotFound when the document does not exist. Delete cannot complete
// while fn runs, so records written by fn never outlive their document
// unnoticed.
func (r *MemoryRepo) WithDocument(ctx context.Context, id string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	return fn()
}

// UpdateExtraction records a successful extraction.
func (r *MemoryRepo) UpdateExtraction(ctx context.Context, id string, ex Extraction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if entry.doc.ExtractionStatus == StatusExtracted {
		return ErrAlreadyExtracted
	}
	at := ex.ExtractedAt
	entry.doc.ExtractedTextKey = ex.TextKey
	entry.doc.Financials = ex.Financials.Clone()
	entry.doc.ExtractionStatus = StatusExtracted
	entry.doc.ExtractionError = ""
	entry.doc.ExtractedAt = &at
	r.data[id] = entry
	return nil
}

// MarkExtractionFailed records a failed extraction attempt.
func (r *MemoryRepo) MarkExtractionFailed(ctx context.Context, id, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if entry.doc.ExtractionStatus == StatusExtracted {
		return ErrAlreadyExtracted
	}
	entry.doc.ExtractionStatus = StatusExtractionFailed
	entry.doc.ExtractionError = message
	r.data[id] = entry
	return nil
}

// Delete removes a document.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

var _ DocumentsRepo = (*MemoryRepo)(nil)
