package documents

import "context"

// DocumentsRepo defines persistence operations for documents.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	// List returns documents oldest first. A limit <= 0 returns every
	// document after offset; callers apply any page-size cap.
	List(ctx context.Context, limit, offset int) ([]Document, error)
	UpdateExtraction(ctx context.Context, id string, ex Extraction) error
	MarkExtractionFailed(ctx context.Context, id, message string) error
	Delete(ctx context.Context, id string) error
}
