package bootstrap_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"creditmemo-backend/internal/bootstrap"
	"creditmemo-backend/internal/documents"
	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/financial"
	"creditmemo-backend/internal/generation"
	"creditmemo-backend/internal/llm"
	"creditmemo-backend/internal/memos"
	"creditmemo-backend/internal/shared/config"
)

type staticCompleter struct{ reply string }

func (c staticCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.reply, nil
}

func buildApp(t *testing.T, databaseURL string) *bootstrap.App {
	t.Helper()
	cfg := config.Config{
		Port:               "0",
		LocalStoreDir:      t.TempDir(),
		Env:                "dev",
		ObjectStoreType:    "local",
		DatabaseURL:        databaseURL,
		LLMProviders:       []string{"google"},
		LLMDefaultProvider: "google",
		GenerationDispatch: "local",
		GenerationWorkers:  1,
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	if databaseURL != "" && app.DB == nil {
		t.Fatalf("expected a database for %s, got in-memory repositories", databaseURL)
	}

	router := llm.NewRouter("google")
	router.Register("google", "gemini-1.5-pro", staticCompleter{reply: "1. Executive Summary\n\nAcme is sound."}, 0)
	router.Register("openai", "gpt-4o-mini", staticCompleter{reply: "1. Executive Summary\n\nAcme is fine."}, 0)
	app.Generation.LLM = router
	return app
}

func backends(t *testing.T) map[string]string {
	return map[string]string{
		"memory": "",
		"sqlite": "sqlite://" + filepath.Join(t.TempDir(), "creditmemo.db"),
	}
}

func uploadExtracted(t *testing.T, app *bootstrap.App) documents.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := app.Documents.Upload(ctx, documents.UploadInput{
		FileName:    "acme-2023.pdf",
		CompanyName: "Acme Corp",
		Body:        []byte("%PDF-1.4\nacme statement"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	data := financial.Data{}
	data.Set(2023, financial.BalanceSheet, financial.CatCurrentAssets, "Total Current Assets", 500)
	doc, err = app.Documents.ApplyExtraction(ctx, doc.ID, extract.Result{Financials: data})
	if err != nil {
		t.Fatalf("apply extraction: %v", err)
	}
	return doc
}

func TestGenerateThenListHoldsOneGoogleMemo(t *testing.T) {
	for name, url := range backends(t) {
		t.Run(name, func(t *testing.T) {
			app := buildApp(t, url)
			ctx := context.Background()
			doc := uploadExtracted(t, app)

			if _, err := app.Generation.Generate(ctx, generation.Request{DocumentID: doc.ID, Provider: "google"}); err != nil {
				t.Fatalf("generate: %v", err)
			}
			list, err := app.Memos.List(ctx, 0, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 1 {
				t.Fatalf("expected 1 memo, got %d", len(list))
			}
			if list[0].Provider != "google" || list[0].DocumentID != doc.ID {
				t.Fatalf("unexpected memo: %+v", list[0])
			}
		})
	}
}

func TestDeleteDocumentCascadesToMemos(t *testing.T) {
	for name, url := range backends(t) {
		t.Run(name, func(t *testing.T) {
			app := buildApp(t, url)
			ctx := context.Background()
			doc := uploadExtracted(t, app)

			var ids []string
			for _, provider := range []string{"google", "openai"} {
				memo, err := app.Generation.Generate(ctx, generation.Request{DocumentID: doc.ID, Provider: provider})
				if err != nil {
					t.Fatalf("generate %s: %v", provider, err)
				}
				ids = append(ids, memo.ID)
			}

			if err := app.Documents.Delete(ctx, doc.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			for _, id := range ids {
				if _, err := app.Memos.Get(ctx, id); !errors.Is(err, memos.ErrNotFound) {
					t.Fatalf("memo %s: expected ErrNotFound, got %v", id, err)
				}
			}
			remaining, err := app.Memos.ListByDocument(ctx, doc.ID)
			if err != nil {
				t.Fatalf("list by document: %v", err)
			}
			if len(remaining) != 0 {
				t.Fatalf("expected no memos, got %d", len(remaining))
			}
			if err := app.Documents.Delete(ctx, doc.ID); !errors.Is(err, documents.ErrNotFound) {
				t.Fatalf("second delete: expected ErrNotFound, got %v", err)
			}
		})
	}
}

// lateMemoWriter writes a memo for the document while the cascade is
// running, the way a generation finishing mid-delete would.
type lateMemoWriter struct {
	memos *memos.Service
	id    string
	err   error
}

func (w *lateMemoWriter) DeleteByDocument(ctx context.Context, documentID string) error {
	if w.id != "" || w.err != nil {
		return nil
	}
	memo, err := w.memos.Create(ctx, memos.CreateInput{
		DocumentID: documentID,
		Provider:   "google",
		Content:    "late memo",
	})
	w.id, w.err = memo.ID, err
	return nil
}

func TestDeleteDocumentRemovesMemoWrittenDuringCascade(t *testing.T) {
	for name, url := range backends(t) {
		t.Run(name, func(t *testing.T) {
			app := buildApp(t, url)
			ctx := context.Background()
			doc := uploadExtracted(t, app)

			late := &lateMemoWriter{memos: app.Memos}
			app.Documents.Dependents = append(app.Documents.Dependents, late)

			if err := app.Documents.Delete(ctx, doc.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if late.err != nil {
				t.Fatalf("late create: %v", late.err)
			}
			if _, err := app.Memos.Get(ctx, late.id); !errors.Is(err, memos.ErrNotFound) {
				t.Fatalf("late memo survived delete: %v", err)
			}
			list, err := app.Memos.List(ctx, 0, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 0 {
				t.Fatalf("expected no memos after cascade, got %d", len(list))
			}

			_, err = app.Memos.Create(ctx, memos.CreateInput{DocumentID: doc.ID, Provider: "google", Content: "too late"})
			if !errors.Is(err, memos.ErrDocumentNotFound) {
				t.Fatalf("create after delete: expected ErrDocumentNotFound, got %v", err)
			}
		})
	}
}
