package memos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func get(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHandlerListGetAndDownload(t *testing.T) {
	svc, docs := newTestService(t)
	seedDocument(t, docs, "doc-1", "Acme")
	svc.Formats = fakeFormats{}
	memo, err := svc.Create(context.Background(), CreateInput{
		DocumentID: "doc-1",
		Provider:   "google",
		Model:      "gemini-1.5-pro",
		Content:    "1. Executive Summary\n\nSolid.",
	})
	require.NoError(t, err)
	r := newTestRouter(svc)

	w := get(r, http.MethodGet, "/api/v1/documents/doc-1/memos")
	require.Equal(t, http.StatusOK, w.Code)
	var list []MemoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, memo.ID, list[0].MemoID)
	assert.Empty(t, list[0].Content, "list omits memo content")

	w = get(r, http.MethodGet, "/api/v1/memos/"+memo.ID)
	require.Equal(t, http.StatusOK, w.Code)
	var one MemoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Contains(t, one.Content, "Solid.")

	w = get(r, http.MethodGet, "/api/v1/memos/"+memo.ID+"/download")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, docxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".docx")
	assert.Equal(t, "PK", string(w.Body.Bytes()[:2]))

	w = get(r, http.MethodGet, "/api/v1/memos/"+memo.ID+"/download?formatId=missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerDeleteAndNotFound(t *testing.T) {
	svc, docs := newTestService(t)
	seedDocument(t, docs, "doc-1", "Acme")
	memo, err := svc.Create(context.Background(), CreateInput{DocumentID: "doc-1", Provider: "openai", Content: "memo"})
	require.NoError(t, err)
	r := newTestRouter(svc)

	assert.Equal(t, http.StatusNoContent, get(r, http.MethodDelete, "/api/v1/memos/"+memo.ID).Code)
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodGet, "/api/v1/memos/"+memo.ID).Code)
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodDelete, "/api/v1/memos/"+memo.ID).Code)
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodGet, "/api/v1/documents/missing/memos").Code)
}
