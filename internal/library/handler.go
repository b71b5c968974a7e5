package library

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/shared/server/respond"
)

const maxLibraryUpload = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches methodology and memo-format routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	h.register(rg, "/methodologies", KindMethodology)
	h.register(rg, "/memo-formats", KindMemoFormat)
}

func (h *Handler) register(rg *gin.RouterGroup, path string, kind Kind) {
	rg.POST(path, h.upload(kind))
	rg.GET(path, h.list(kind))
	rg.GET(path+"/:id", h.get(kind))
	rg.DELETE(path+"/:id", h.delete(kind))
	rg.GET(path+"/:id/download", h.download(kind))
}

func (h *Handler) upload(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxLibraryUpload)

		fileHeader, err := c.FormFile("file")
		if err != nil {
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

		item, err := h.Svc.Upload(c.Request.Context(), kind, UploadInput{
			Name:        c.PostForm("name"),
			Description: c.PostForm("description"),
			FileName:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Body:        body,
		})
		if err != nil {
			writeError(c, kind, err, "failed to upload "+kind.Label())
			return
		}
		respond.JSON(c, http.StatusCreated, toResponse(item, false))
	}
}

func (h *Handler) list(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.Svc.List(c.Request.Context(), kind)
		if err != nil {
			writeError(c, kind, err, "failed to list "+kind.Label())
			return
		}
		resp := make([]ItemResponse, 0, len(items))
		for _, item := range items {
			resp = append(resp, toResponse(item, false))
		}
		respond.OK(c, resp)
	}
}

func (h *Handler) get(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := h.Svc.Get(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			writeError(c, kind, err, "failed to fetch "+kind.Label())
			return
		}
		respond.OK(c, toResponse(item, true))
	}
}

func (h *Handler) delete(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Svc.Delete(c.Request.Context(), kind, c.Param("id")); err != nil {
			writeError(c, kind, err, "failed to delete "+kind.Label())
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) download(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, data, err := h.Svc.Download(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			writeError(c, kind, err, "failed to download "+kind.Label())
			return
		}
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": item.FileName}))
		c.Data(http.StatusOK, item.MimeType, data)
	}
}

func writeError(c *gin.Context, kind Kind, err error, fallback string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		respond.Error(c, http.StatusRequestEntityTooLarge, "validation_error", "file too large", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", kind.Label()+" not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, extract.ErrExtraction):
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
