package memos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"creditmemo-backend/internal/shared/telemetry"
	"creditmemo-backend/memo/render"
)

// FormatSource loads memo-format DOCX templates by ID.
type FormatSource interface {
	FormatTemplate(ctx context.Context, id string) ([]byte, error)
}

// Service contains business logic for memos.
type Service struct {
	Repo    Repo
	Docs    DocumentGetter
	Formats FormatSource
	Now     func() time.Time
}

// CreateInput is the content of a newly generated memo.
type CreateInput struct {
	DocumentID    string
	Provider      string
	Model         string
	MethodologyID string
	Content       string
}

// Rendered is a memo formatted for download.
type Rendered struct {
	FileName string
	Bytes    []byte
}

// Create records a new memo for an existing document.
func (s *Service) Create(ctx context.Context, in CreateInput) (Memo, error) {
	if strings.TrimSpace(in.DocumentID) == "" || strings.TrimSpace(in.Provider) == "" {
		return Memo{}, fmt.Errorf("%w: document id and provider are required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Content) == "" {
		return Memo{}, fmt.Errorf("%w: memo content is empty", ErrInvalidInput)
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	memo := Memo{
		ID:            uuid.NewString(),
		DocumentID:    in.DocumentID,
		Provider:      in.Provider,
		Model:         in.Model,
		MethodologyID: in.MethodologyID,
		Content:       in.Content,
		CreatedAt:     now,
	}
	if err := s.Repo.Create(ctx, memo); err != nil {
		return Memo{}, err
	}
	telemetry.Info("memo.created", map[string]any{
		"memo_id":     memo.ID,
		"document_id": memo.DocumentID,
		"provider":    memo.Provider,
	})
	return memo, nil
}

// Get returns a memo by ID.
func (s *Service) Get(ctx context.Context, id string) (Memo, error) {
	if strings.TrimSpace(id) == "" {
		return Memo{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns memos oldest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Memo, error) {
	return s.Repo.List(ctx, limit, offset)
}

// ListByDocument returns the memos generated for a document.
func (s *Service) ListByDocument(ctx context.Context, documentID string) ([]Memo, error) {
	if s.Docs != nil {
		if _, err := s.Docs.GetByID(ctx, documentID); err != nil {
			return nil, err
		}
	}
	return s.Repo.ListByDocument(ctx, documentID)
}

// Delete removes a memo.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

// Render formats a memo as DOCX. An empty formatID uses the built-in layout;
// otherwise the memo-format template with that ID is filled in.
func (s *Service) Render(ctx context.Context, id, formatID string) (Rendered, error) {
	memo, err := s.Get(ctx, id)
	if err != nil {
		return Rendered{}, err
	}

	var company string
	if s.Docs != nil {
		doc, err := s.Docs.GetByID(ctx, memo.DocumentID)
		if err != nil {
			return Rendered{}, err
		}
		company = doc.CompanyName
	}

	var template []byte
	if formatID = strings.TrimSpace(formatID); formatID != "" {
		if s.Formats == nil {
			return Rendered{}, errors.New("memo formats are not configured")
		}
		template, err = s.Formats.FormatTemplate(ctx, formatID)
		if err != nil {
			return Rendered{}, err
		}
	}

	out, err := render.Render(render.Input{
		CompanyName: company,
		Provider:    memo.Provider,
		Model:       memo.Model,
		Date:        memo.CreatedAt,
		Body:        memo.Content,
	}, template)
	if err != nil {
		telemetry.Error("memo.render_failed", map[string]any{
			"memo_id":   memo.ID,
			"format_id": formatID,
			"error":     err.Error(),
		})
		return Rendered{}, err
	}
	return Rendered{FileName: render.FileName(company, memo.CreatedAt), Bytes: out}, nil
}
