package documents

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/shared/server/respond"
)

const defaultMaxUploadBytes = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.DELETE("/documents/:id", h.delete)
	rg.POST("/documents/:id/extract", h.extract)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(c, err, "")
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	doc, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		FileName:    fileHeader.Filename,
		CompanyName: c.PostForm("company_name"),
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        body,
	})
	if err != nil {
		writeError(c, err, "failed to upload document")
		return
	}
	c.Set("documentId", doc.ID)

	if c.DefaultQuery("extract", "true") != "false" {
		// The upload itself succeeded; a failed extraction is reported on the
		// document's status and can be retried through /extract.
		if extracted, err := h.Svc.Extract(c.Request.Context(), doc.ID); err == nil {
			doc = extracted
		} else if current, getErr := h.Svc.Get(c.Request.Context(), doc.ID); getErr == nil {
			doc = current
		}
	}

	respond.JSON(c, http.StatusCreated, toResponse(doc, true))
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err, "failed to list documents")
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc, false))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("documentId", id)

	doc, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch document")
		return
	}
	respond.OK(c, toResponse(doc, true))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set("documentId", id)

	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "failed to delete document")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) extract(c *gin.Context) {
	id := c.Param("id")
	c.Set("documentId", id)

	doc, err := h.Svc.Extract(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to extract document")
		return
	}
	respond.OK(c, toResponse(doc, true))
}

func writeError(c *gin.Context, err error, fallback string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		respond.Error(c, http.StatusRequestEntityTooLarge, "validation_error", "file too large", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrAlreadyExtracted):
		respond.Error(c, http.StatusConflict, "invalid_state", err.Error(), nil)
	case errors.Is(err, extract.ErrExtraction):
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", SanitizeErrorMessage(err.Error()), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
