package memos

import "context"

// Repo defines persistence operations for memos.
type Repo interface {
	// Create stores a memo; it fails with ErrDocumentNotFound when the
	// owning document does not exist.
	Create(ctx context.Context, memo Memo) error
	GetByID(ctx context.Context, id string) (Memo, error)
	// List returns memos oldest first. A limit <= 0 returns every memo
	// after offset; callers apply any page-size cap.
	List(ctx context.Context, limit, offset int) ([]Memo, error)
	ListByDocument(ctx context.Context, documentID string) ([]Memo, error)
	Delete(ctx context.Context, id string) error
	DeleteByDocument(ctx context.Context, documentID string) error
}
