package memos

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditmemo-backend/internal/documents"
	"creditmemo-backend/internal/library"
	"creditmemo-backend/memo/render"
)

type fakeFormats map[string][]byte

func (f fakeFormats) FormatTemplate(ctx context.Context, id string) ([]byte, error) {
	tmpl, ok := f[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	return tmpl, nil
}

func newTestService(t *testing.T) (*Service, *documents.MemoryRepo) {
	t.Helper()
	docs := documents.NewMemoryRepo()
	return &Service{
		Repo: NewMemoryRepo(docs),
		Docs: docs,
		Now:  func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) },
	}, docs
}

func seedDocument(t *testing.T, docs *documents.MemoryRepo, id, company string) {
	t.Helper()
	require.NoError(t, docs.Create(context.Background(), documents.Document{
		ID:          id,
		FileName:    id + ".pdf",
		CompanyName: company,
		MimeType:    "application/pdf",
		StorageKey:  "documents/" + id,
		CreatedAt:   time.Now().UTC(),
	}))
}

func TestCreateRequiresExistingDocument(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{DocumentID: "missing", Provider: "google", Content: "memo"})
	assert.ErrorIs(t, err, documents.ErrNotFound)

	_, err = svc.Create(context.Background(), CreateInput{DocumentID: "doc", Provider: "google"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMultipleMemosPerDocument(t *testing.T) {
	svc, docs := newTestService(t)
	seedDocument(t, docs, "doc-1", "Acme")
	seedDocument(t, docs, "doc-2", "Globex")
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{DocumentID: "doc-1", Provider: "google", Content: "one"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{DocumentID: "doc-1", Provider: "openai", Content: "two"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{DocumentID: "doc-2", Provider: "google", Content: "three"})
	require.NoError(t, err)

	byDoc, err := svc.ListByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, byDoc, 2)
	assert.Equal(t, first.ID, byDoc[0].ID)
	assert.Equal(t, second.ID, byDoc[1].ID)

	all, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.ListByDocument(ctx, "unknown")
	assert.ErrorIs(t, err, documents.ErrNotFound)

	require.NoError(t, svc.Repo.DeleteByDocument(ctx, "doc-1"))
	byDoc, err = svc.ListByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, byDoc)

	assert.ErrorIs(t, svc.Delete(ctx, first.ID), ErrNotFound)
}

func TestRenderDefaultLayout(t *testing.T) {
	svc, docs := newTestService(t)
	seedDocument(t, docs, "doc-1", "Acme Ltd")
	ctx := context.Background()

	memo, err := svc.Create(ctx, CreateInput{DocumentID: "doc-1", Provider: "google", Model: "gemini-1.5-pro", Content: "1. Executive Summary\n\nSolid."})
	require.NoError(t, err)

	out, err := svc.Render(ctx, memo.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "credit_memo_Acme_Ltd_20240305.docx", out.FileName)

	xml := documentXML(t, out.Bytes)
	assert.Contains(t, xml, "Company: Acme Ltd")
	assert.Contains(t, xml, "Generated with google (gemini-1.5-pro)")
}

func TestRenderWithFormat(t *testing.T) {
	svc, docs := newTestService(t)
	seedDocument(t, docs, "doc-1", "Acme")
	ctx := context.Background()

	template, err := render.Render(render.Input{CompanyName: render.PlaceholderCompany, Body: "Body: " + render.PlaceholderBody}, nil)
	require.NoError(t, err)
	svc.Formats = fakeFormats{"fmt-1": template}

	memo, err := svc.Create(ctx, CreateInput{DocumentID: "doc-1", Provider: "openai", Content: "All good."})
	require.NoError(t, err)

	out, err := svc.Render(ctx, memo.ID, "fmt-1")
	require.NoError(t, err)
	xml := documentXML(t, out.Bytes)
	assert.Contains(t, xml, "Company: Acme")
	assert.Contains(t, xml, "Body: All good.")

	_, err = svc.Render(ctx, memo.ID, "fmt-missing")
	assert.ErrorIs(t, err, library.ErrNotFound)

	_, err = svc.Render(ctx, "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func documentXML(t *testing.T, docx []byte) string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	require.NoError(t, err)
	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(content)
	}
	t.Fatal("word/document.xml not found")
	return ""
}
