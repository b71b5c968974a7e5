package library

import "context"

// Repo defines persistence operations for library items. Lookups are scoped
// by kind, so a methodology ID never resolves to a memo format.
type Repo interface {
	Create(ctx context.Context, item Item) error
	GetByID(ctx context.Context, kind Kind, id string) (Item, error)
	// List returns the items of a kind oldest first.
	List(ctx context.Context, kind Kind) ([]Item, error)
	Delete(ctx context.Context, kind Kind, id string) error
}
