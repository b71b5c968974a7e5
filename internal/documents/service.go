package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/shared/metrics"
	"creditmemo-backend/internal/shared/storage/object"
	"creditmemo-backend/internal/shared/telemetry"
)

const storageNamespace = "documents"

const maxErrorMessageLen = 500

// Extractor turns PDF bytes into text and financial data.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (extract.Result, error)
}

// DependentCleaner removes records that belong to a document. Memo and
// generation job repositories implement it.
type DependentCleaner interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Service contains business logic for documents.
type Service struct {
	Store           object.ObjectStore
	Repo            DocumentsRepo
	Extractor       Extractor
	Dependents      []DependentCleaner
	StorageProvider string
	Now             func() time.Time
}

// UploadInput describes an uploaded financial statement.
type UploadInput struct {
	FileName    string
	CompanyName string
	ContentType string
	Body        []byte
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Upload saves the PDF to object storage and records the document with
// status uploaded.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Document, error) {
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if len(in.Body) == 0 {
		return Document{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if !bytes.HasPrefix(in.Body, []byte("%PDF-")) {
		return Document{}, fmt.Errorf("%w: only PDF files are supported (got %s)", ErrInvalidInput,
			extract.NormalizeMimeType(in.ContentType, fileName, in.Body))
	}

	storageKey, size, _, err := s.Store.Save(ctx, storageNamespace, fileName, bytes.NewReader(in.Body))
	if err != nil {
		return Document{}, fmt.Errorf("store document: %w", err)
	}

	doc := Document{
		ID:               uuid.NewString(),
		FileName:         fileName,
		CompanyName:      strings.TrimSpace(in.CompanyName),
		MimeType:         extract.MimePDF,
		SizeBytes:        size,
		StorageProvider:  s.StorageProvider,
		StorageKey:       storageKey,
		ExtractionStatus: StatusUploaded,
		CreatedAt:        s.now(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		_ = s.Store.Delete(ctx, storageKey)
		return Document{}, err
	}

	telemetry.Info("document.uploaded", map[string]any{
		"document_id": doc.ID,
		"size_bytes":  doc.SizeBytes,
	})
	return doc, nil
}

// RegisterInput names a PDF the client uploaded straight to object storage.
type RegisterInput struct {
	StorageKey  string
	FileName    string
	CompanyName string
}

// Register records a document for an object that was uploaded directly to
// the store through a presigned URL.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Document, error) {
	key := strings.TrimSpace(in.StorageKey)
	if !strings.HasPrefix(key, storageNamespace+"/") || strings.Contains(key, "..") {
		return Document{}, fmt.Errorf("%w: storage key must be a document upload", ErrInvalidInput)
	}
	data, err := object.ReadAll(ctx, s.Store, key)
	if errors.Is(err, object.ErrNotFound) {
		return Document{}, fmt.Errorf("%w: no uploaded object at %s", ErrInvalidInput, key)
	}
	if err != nil {
		return Document{}, fmt.Errorf("read uploaded document: %w", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		_ = s.Store.Delete(ctx, key)
		return Document{}, fmt.Errorf("%w: only PDF files are supported", ErrInvalidInput)
	}

	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		fileName = path.Base(key)
	}
	doc := Document{
		ID:               uuid.NewString(),
		FileName:         fileName,
		CompanyName:      strings.TrimSpace(in.CompanyName),
		MimeType:         extract.MimePDF,
		SizeBytes:        int64(len(data)),
		StorageProvider:  s.StorageProvider,
		StorageKey:       key,
		ExtractionStatus: StatusUploaded,
		CreatedAt:        s.now(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	telemetry.Info("document.registered", map[string]any{
		"document_id": doc.ID,
		"size_bytes":  doc.SizeBytes,
	})
	return doc, nil
}

// Extract runs the PDF extractor over a stored document and persists the
// text and financial data. A failed run is recorded on the document and
// may be retried.
func (s *Service) Extract(ctx context.Context, id string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.ExtractionStatus == StatusExtracted {
		return doc, ErrAlreadyExtracted
	}

	start := time.Now()
	data, err := object.ReadAll(ctx, s.Store, doc.StorageKey)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}

	result, err := s.Extractor.Extract(ctx, data)
	if err != nil {
		metrics.IncExtractionFailed()
		message := SanitizeErrorMessage(err.Error())
		telemetry.Error("document.extraction_failed", map[string]any{
			"document_id": id,
			"error":       message,
			"duration_ms": metrics.SinceMillis(start),
		})
		if markErr := s.Repo.MarkExtractionFailed(ctx, id, message); markErr != nil {
			return Document{}, errors.Join(err, markErr)
		}
		return Document{}, err
	}

	updated, err := s.ApplyExtraction(ctx, id, result)
	if err != nil {
		return Document{}, err
	}
	metrics.IncExtractionCompleted()
	telemetry.Info("document.extracted", map[string]any{
		"document_id": id,
		"years":       updated.Financials.Years(),
		"duration_ms": metrics.SinceMillis(start),
	})
	return updated, nil
}

// ApplyExtraction stores an extraction result for a document: the text goes
// to the object store next to the upload and the financial data to the repo.
func (s *Service) ApplyExtraction(ctx context.Context, id string, result extract.Result) (Document, error) {
	if !result.Financials.HasValues() {
		return Document{}, fmt.Errorf("%w: no financial values", extract.ErrExtraction)
	}
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}

	var textKey string
	if result.Text != "" {
		textKey = extract.ExtractedKey(doc.StorageKey)
		if _, err := s.Store.SaveWithKey(ctx, textKey, extract.MimeText, strings.NewReader(result.Text)); err != nil {
			return Document{}, fmt.Errorf("store extracted text: %w", err)
		}
	}

	ex := Extraction{
		TextKey:     textKey,
		Financials:  result.Financials,
		ExtractedAt: s.now(),
	}
	if err := s.Repo.UpdateExtraction(ctx, id, ex); err != nil {
		return Document{}, err
	}
	return s.Repo.GetByID(ctx, id)
}

// Text returns the extracted plain text of a document, or "" when none was stored.
func (s *Service) Text(ctx context.Context, doc Document) (string, error) {
	if doc.ExtractedTextKey == "" {
		return "", nil
	}
	data, err := object.ReadAll(ctx, s.Store, doc.ExtractedTextKey)
	if errors.Is(err, object.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	if strings.TrimSpace(id) == "" {
		return Document{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns documents oldest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Document, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Delete removes a document together with its memos and generation jobs,
// then removes the stored objects on a best-effort basis.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deleteDependents(ctx, id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	// Dependents written between the first sweep and the row delete
	// are removed here; later writes fail because the document is gone.
	if err := s.deleteDependents(ctx, id); err != nil {
		return err
	}

	for _, key := range []string{doc.StorageKey, doc.ExtractedTextKey} {
		if key == "" {
			continue
		}
		if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("document.object_delete_failed", map[string]any{
				"document_id": id,
				"storage_key": key,
				"error":       err.Error(),
			})
		}
	}
	telemetry.Info("document.deleted", map[string]any{"document_id": id})
	return nil
}

func (s *Service) deleteDependents(ctx context.Context, id string) error {
	for _, dep := range s.Dependents {
		if err := dep.DeleteByDocument(ctx, id); err != nil {
			return fmt.Errorf("delete dependents of %s: %w", id, err)
		}
	}
	return nil
}

// SanitizeErrorMessage flattens an error message to a single line of at
// most 500 runes.
func SanitizeErrorMessage(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if runes := []rune(msg); len(runes) > maxErrorMessageLen {
		msg = string(runes[:maxErrorMessageLen])
	}
	return msg
}
