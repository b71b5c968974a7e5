package uploads

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"creditmemo-backend/internal/documents"
	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/shared/server/middleware"
	"creditmemo-backend/internal/shared/server/respond"
	"creditmemo-backend/internal/shared/storage/object"
	"creditmemo-backend/internal/shared/telemetry"
)

const (
	presignExpires        = 15 * time.Minute
	defaultMaxUploadBytes = 10 << 20
	documentsNamespace    = "documents"
)

// Handler issues presigned upload URLs and registers the uploaded PDFs.
type Handler struct {
	Presigner      object.Presigner
	Docs           *documents.Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(presigner object.Presigner, docs *documents.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Presigner: presigner, Docs: docs, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
	rg.POST("/uploads/complete", h.complete)
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	StorageKey       string `json:"storageKey"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

type completeRequest struct {
	StorageKey  string `json:"storageKey"`
	FileName    string `json:"fileName"`
	CompanyName string `json:"companyName"`
	Extract     *bool  `json:"extract"`
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if req.ContentType != extract.MimePDF {
		respond.Error(c, http.StatusBadRequest, "validation_error", "only application/pdf uploads are supported", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > h.MaxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}
	if h.Presigner == nil {
		respond.Error(c, http.StatusNotImplemented, "not_supported", "direct uploads require the s3 object store", nil)
		return
	}

	url, key, err := h.Presigner.PresignPut(c.Request.Context(), documentsNamespace, req.FileName, presignExpires)
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"error":        err.Error(),
			"content_type": req.ContentType,
			"size_bytes":   req.SizeBytes,
			"request_id":   middleware.RequestIDFromContext(c),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        url,
		StorageKey:       key,
		ExpiresInSeconds: int64(presignExpires.Seconds()),
	})
}

func (h *Handler) complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := c.Request.Context()
	doc, err := h.Docs.Register(ctx, documents.RegisterInput{
		StorageKey:  req.StorageKey,
		FileName:    req.FileName,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		if errors.Is(err, documents.ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to register upload", nil)
		return
	}
	c.Set("documentId", doc.ID)

	if req.Extract == nil || *req.Extract {
		if extracted, err := h.Docs.Extract(ctx, doc.ID); err == nil {
			doc = extracted
		} else if current, getErr := h.Docs.Get(ctx, doc.ID); getErr == nil {
			doc = current
		}
	}
	respond.JSON(c, http.StatusCreated, documents.NewResponse(doc))
}
