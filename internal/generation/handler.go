package generation

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"creditmemo-backend/internal/documents"
	"creditmemo-backend/internal/library"
	"creditmemo-backend/internal/llm"
	"creditmemo-backend/internal/shared/server/middleware"
	"creditmemo-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches generation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/generate", h.generate)
	rg.GET("/generation-jobs", h.listJobs)
	rg.GET("/generation-jobs/:id", h.getJob)
}

func (h *Handler) generate(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)

	req := Request{
		DocumentID:    documentID,
		Provider:      c.Query("provider"),
		MethodologyID: c.Query("methodologyId"),
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if async {
		job, err := h.Svc.Submit(ctx, req)
		if err != nil {
			writeError(c, err, "failed to submit generation")
			return
		}
		c.Set("jobId", job.ID)
		respond.JSON(c, http.StatusAccepted, gin.H{
			"jobId":  job.ID,
			"status": job.Status,
		})
		return
	}

	memo, err := h.Svc.Generate(ctx, req)
	if err != nil {
		writeError(c, err, "failed to generate memo")
		return
	}
	c.Set("memoId", memo.ID)
	respond.JSON(c, http.StatusCreated, toMemoResponse(memo))
}

func (h *Handler) getJob(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)

	job, err := h.Svc.GetJob(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch generation job")
		return
	}
	respond.OK(c, toJobResponse(job))
}

func (h *Handler) listJobs(c *gin.Context) {
	documentID := strings.TrimSpace(c.Query("documentId"))
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentId is required", nil)
		return
	}
	c.Set("documentId", documentID)

	jobs, err := h.Svc.ListJobs(c.Request.Context(), documentID)
	if err != nil {
		writeError(c, err, "failed to list generation jobs")
		return
	}
	resp := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, toJobResponse(job))
	}
	respond.OK(c, resp)
}

func writeError(c *gin.Context, err error, fallback string) {
	var pe *llm.ProviderError
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "generation job not found", nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, library.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "methodology not found", nil)
	case errors.Is(err, ErrInvalidState):
		respond.Error(c, http.StatusConflict, "invalid_state", err.Error(), nil)
	case errors.Is(err, llm.ErrUnsupportedProvider):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.As(err, &pe) && pe.Kind == llm.KindRateLimit:
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "provider rate limit reached", map[string]any{
			"provider": pe.Provider,
		})
	case errors.Is(err, ErrGenerationFailed), errors.As(err, &pe):
		details := map[string]any{}
		if pe != nil {
			details["provider"] = pe.Provider
			details["kind"] = string(pe.Kind)
		}
		respond.Error(c, http.StatusBadGateway, "generation_failed", documents.SanitizeErrorMessage(err.Error()), details)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
