package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Open and Delete when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving and retrieving binary objects.
// Save places the object under namespace with a random prefix and returns the
// generated key; SaveWithKey writes to a caller-chosen key.
type ObjectStore interface {
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// ReadAll opens storageKey and returns its full contents.
func ReadAll(ctx context.Context, store ObjectStore, storageKey string) ([]byte, error) {
	body, err := store.Open(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// Presigner is implemented by stores that can accept direct client uploads.
type Presigner interface {
	PresignPut(ctx context.Context, namespace, fileName string, expires time.Duration) (url, storageKey string, err error)
}
