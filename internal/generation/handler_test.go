package generation

import (
	"encoding/json"
	"errors"
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

func doRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandlerGenerateSync(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, true)
	r := newTestRouter(f.svc)

	w := doRequest(r, http.MethodPost, "/api/v1/documents/"+doc.ID+"/generate?provider=openai")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp MemoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.MemoID)
	assert.Equal(t, "openai", resp.Provider)
	assert.Contains(t, resp.Content, "OpenAI memo.")
}

func TestHandlerGenerateAsyncThenPoll(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, true)
	r := newTestRouter(f.svc)

	w := doRequest(r, http.MethodPost, "/api/v1/documents/"+doc.ID+"/generate?async=true")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var accepted struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, "requested", accepted.Status)

	w = doRequest(r, http.MethodGet, "/api/v1/generation-jobs/"+accepted.JobID)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/generation-jobs?documentId="+doc.ID)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, accepted.JobID, jobs[0].JobID)
}

func TestHandlerGenerateErrors(t *testing.T) {
	f := newFixture(t)
	pending := f.upload(t, false)
	ready := f.upload(t, true)
	r := newTestRouter(f.svc)

	cases := []struct {
		name     string
		path     string
		setup    func()
		wantCode int
		wantErr  string
	}{
		{"not extracted", "/documents/" + pending.ID + "/generate", nil, http.StatusConflict, "invalid_state"},
		{"not extracted with unknown provider", "/documents/" + pending.ID + "/generate?provider=nope", nil, http.StatusConflict, "invalid_state"},
		{"unknown document", "/documents/missing/generate", nil, http.StatusNotFound, "not_found"},
		{"unknown provider", "/documents/" + ready.ID + "/generate?provider=claude", nil, http.StatusBadRequest, "validation_error"},
		{"unknown methodology", "/documents/" + ready.ID + "/generate?methodologyId=nope", nil, http.StatusNotFound, "not_found"},
		{"rate limited", "/documents/" + ready.ID + "/generate", func() { f.google.err = errors.New("resource exhausted: quota") }, http.StatusTooManyRequests, "rate_limited"},
		{"provider failure", "/documents/" + ready.ID + "/generate", func() { f.google.err = errors.New("bad gateway") }, http.StatusBadGateway, "generation_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup()
			}
			w := doRequest(r, http.MethodPost, "/api/v1"+tc.path)
			require.Equal(t, tc.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tc.wantErr, errorCode(t, w))
		})
	}
}

func TestHandlerJobLookups(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f.svc)

	w := doRequest(r, http.MethodGet, "/api/v1/generation-jobs")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/generation-jobs/unknown")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/generation-jobs?documentId=missing")
	require.Equal(t, http.StatusNotFound, w.Code)
}
