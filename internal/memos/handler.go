package memos

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"creditmemo-backend/internal/documents"
	"creditmemo-backend/internal/library"
	"creditmemo-backend/internal/shared/server/respond"
	"creditmemo-backend/memo/render"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches memo routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/memos", h.list)
	rg.GET("/memos/:id", h.get)
	rg.DELETE("/memos/:id", h.delete)
	rg.GET("/memos/:id/download", h.download)
	rg.GET("/documents/:id/memos", h.listByDocument)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	memos, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err, "failed to list memos")
		return
	}
	respond.OK(c, toResponses(memos))
}

func (h *Handler) listByDocument(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)

	memos, err := h.Svc.ListByDocument(c.Request.Context(), documentID)
	if err != nil {
		writeError(c, err, "failed to list memos")
		return
	}
	respond.OK(c, toResponses(memos))
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("memoId", id)

	memo, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch memo")
		return
	}
	respond.OK(c, toResponse(memo, true))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set("memoId", id)

	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "failed to delete memo")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) download(c *gin.Context) {
	id := c.Param("id")
	c.Set("memoId", id)

	out, err := h.Svc.Render(c.Request.Context(), id, c.Query("formatId"))
	if err != nil {
		writeError(c, err, "failed to render memo")
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": out.FileName})
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, docxContentType, out.Bytes)
}

func toResponses(memos []Memo) []MemoResponse {
	resp := make([]MemoResponse, 0, len(memos))
	for _, memo := range memos {
		resp = append(resp, toResponse(memo, false))
	}
	return resp
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "memo not found", nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, library.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "memo format not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, render.ErrFormat):
		respond.Error(c, http.StatusInternalServerError, "format_failed", "failed to format memo", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
