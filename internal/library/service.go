package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/shared/storage/object"
	"creditmemo-backend/internal/shared/telemetry"
	"creditmemo-backend/memo/render"
)

const mimeYAML = "application/yaml"

var methodologyExtensions = []string{".txt", ".md", ".markdown", ".pdf", ".docx", ".yaml", ".yml"}

// Service manages uploaded methodologies and memo formats.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Now   func() time.Time
}

// UploadInput describes an uploaded library file.
type UploadInput struct {
	Name        string
	Description string
	FileName    string
	ContentType string
	Body        []byte
}

// Upload validates and stores a library file. Methodologies keep their
// extracted text; memo formats must be DOCX templates containing the
// memo body placeholder.
func (s *Service) Upload(ctx context.Context, kind Kind, in UploadInput) (Item, error) {
	if !kind.Valid() {
		return Item{}, fmt.Errorf("%w: unknown library kind %q", ErrInvalidInput, kind)
	}
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		return Item{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if len(in.Body) == 0 {
		return Item{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	var (
		mimeType string
		content  string
		err      error
	)
	switch kind {
	case KindMethodology:
		mimeType, content, err = methodologyContent(ctx, fileName, in.ContentType, in.Body)
	case KindMemoFormat:
		mimeType, err = checkMemoFormat(fileName, in.Body)
	}
	if err != nil {
		return Item{}, err
	}

	storageKey, size, _, err := s.Store.Save(ctx, "library/"+string(kind), fileName, bytes.NewReader(in.Body))
	if err != nil {
		return Item{}, fmt.Errorf("store %s: %w", kind.Label(), err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	item := Item{
		ID:          uuid.NewString(),
		Kind:        kind,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		FileName:    fileName,
		MimeType:    mimeType,
		SizeBytes:   size,
		StorageKey:  storageKey,
		Content:     content,
		CreatedAt:   s.now(),
	}
	if err := s.Repo.Create(ctx, item); err != nil {
		_ = s.Store.Delete(ctx, storageKey)
		return Item{}, err
	}
	telemetry.Info("library.uploaded", map[string]any{
		"kind":       string(kind),
		"item_id":    item.ID,
		"size_bytes": item.SizeBytes,
	})
	return item, nil
}

func methodologyContent(ctx context.Context, fileName, contentType string, body []byte) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !slices.Contains(methodologyExtensions, ext) {
		return "", "", fmt.Errorf("%w: methodology must be one of %s", ErrInvalidInput, strings.Join(methodologyExtensions, ", "))
	}
	if ext == ".yaml" || ext == ".yml" {
		m, err := ParseMethodology(body)
		if err != nil {
			return "", "", err
		}
		return mimeYAML, m.Text(), nil
	}

	mimeType := extract.NormalizeMimeType(contentType, fileName, body)
	text, err := extract.Text(ctx, body, mimeType, fileName)
	if errors.Is(err, extract.ErrUnsupportedType) {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("%w: methodology has no text", ErrInvalidInput)
	}
	return mimeType, strings.TrimSpace(text), nil
}

func checkMemoFormat(fileName string, body []byte) (string, error) {
	if strings.ToLower(filepath.Ext(fileName)) != ".docx" || !extract.IsDocx(body) {
		return "", fmt.Errorf("%w: memo format must be a .docx file", ErrInvalidInput)
	}
	tokens, err := render.Placeholders(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !slices.Contains(tokens, render.PlaceholderBody) {
		return "", fmt.Errorf("%w: memo format must contain %s", ErrInvalidInput, render.PlaceholderBody)
	}
	return extract.MimeDOCX, nil
}

// List returns the items of a kind oldest first. Methodology listings start
// with the built-in methodology.
func (s *Service) List(ctx context.Context, kind Kind) ([]Item, error) {
	items, err := s.Repo.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if kind != KindMethodology {
		return items, nil
	}
	builtIn, err := builtInItem()
	if err != nil {
		return nil, err
	}
	return append([]Item{builtIn}, items...), nil
}

// Get returns a library item. The built-in methodology is available under
// DefaultMethodologyID.
func (s *Service) Get(ctx context.Context, kind Kind, id string) (Item, error) {
	id = strings.TrimSpace(id)
	if kind == KindMethodology && id == DefaultMethodologyID {
		return builtInItem()
	}
	if id == "" {
		return Item{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, kind, id)
}

// Download returns an item with its stored file.
func (s *Service) Download(ctx context.Context, kind Kind, id string) (Item, []byte, error) {
	item, err := s.Get(ctx, kind, id)
	if err != nil {
		return Item{}, nil, err
	}
	if item.StorageKey == "" {
		return item, defaultMethodologyYAML, nil
	}
	data, err := object.ReadAll(ctx, s.Store, item.StorageKey)
	if err != nil {
		return Item{}, nil, fmt.Errorf("read %s: %w", kind.Label(), err)
	}
	return item, data, nil
}

// Delete removes an item and, best effort, its stored file.
func (s *Service) Delete(ctx context.Context, kind Kind, id string) error {
	if kind == KindMethodology && id == DefaultMethodologyID {
		return fmt.Errorf("%w: the built-in methodology cannot be deleted", ErrInvalidInput)
	}
	item, err := s.Repo.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, kind, id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, item.StorageKey); err != nil && !errors.Is(err, object.ErrNotFound) {
		telemetry.Warn("library.object_delete_failed", map[string]any{
			"kind":        string(kind),
			"item_id":     id,
			"storage_key": item.StorageKey,
			"error":       err.Error(),
		})
	}
	return nil
}

// Methodology resolves the methodology used for a memo: an empty id selects
// the built-in methodology.
func (s *Service) Methodology(ctx context.Context, id string) (Item, error) {
	if strings.TrimSpace(id) == "" {
		return builtInItem()
	}
	return s.Get(ctx, KindMethodology, id)
}

// FormatTemplate returns the DOCX template of a memo format.
func (s *Service) FormatTemplate(ctx context.Context, id string) ([]byte, error) {
	_, data, err := s.Download(ctx, KindMemoFormat, id)
	return data, err
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func builtInItem() (Item, error) {
	m, err := DefaultMethodology()
	if err != nil {
		return Item{}, err
	}
	return Item{
		ID:          m.ID,
		Kind:        KindMethodology,
		Name:        m.Name,
		Description: m.Description,
		FileName:    "default_methodology.yaml",
		MimeType:    mimeYAML,
		SizeBytes:   int64(len(defaultMethodologyYAML)),
		Content:     m.Text(),
	}, nil
}
