package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"creditmemo-backend/internal/documents"
	"creditmemo-backend/internal/generation"
	"creditmemo-backend/internal/library"
	"creditmemo-backend/internal/memos"
	"creditmemo-backend/internal/services/health"
	"creditmemo-backend/internal/shared/config"
	"creditmemo-backend/internal/shared/metrics"
	"creditmemo-backend/internal/shared/server/middleware"
	"creditmemo-backend/internal/shared/server/respond"
	"creditmemo-backend/internal/uploads"
)

const (
	groupDefault    = "DEFAULT"
	groupGeneration = "GENERATION"
	groupPolling    = "POLLING"
)

// ProviderLister reports the configured LLM providers.
type ProviderLister interface {
	Providers() []string
	Default() string
	Model(name string) string
}

// RouterDeps carries the handlers registered under /api/v1.
type RouterDeps struct {
	Config            config.Config
	Health            *health.Service
	Providers         ProviderLister
	DocumentHandler   *documents.Handler
	MemoHandler       *memos.Handler
	GenerationHandler *generation.Handler
	LibraryHandler    *library.Handler
	UploadHandler     *uploads.Handler
}

type providerResponse struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	Default bool   `json:"default"`
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(rateLimitConfig(deps.Config)),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status := deps.Health.Check(c.Request.Context())
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})
	api.GET("/metrics", metrics.Handler())
	api.GET("/providers", func(c *gin.Context) {
		out := []providerResponse{}
		if deps.Providers != nil {
			def := deps.Providers.Default()
			for _, name := range deps.Providers.Providers() {
				out = append(out, providerResponse{Name: name, Model: deps.Providers.Model(name), Default: name == def})
			}
		}
		respond.OK(c, out)
	})

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.MemoHandler != nil {
		deps.MemoHandler.RegisterRoutes(api)
	}
	if deps.GenerationHandler != nil {
		deps.GenerationHandler.RegisterRoutes(api)
	}
	if deps.LibraryHandler != nil {
		deps.LibraryHandler.RegisterRoutes(api)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitConfig(cfg config.Config) middleware.RateLimitConfig {
	rps := cfg.RateLimitRPS
	burst := cfg.RateLimitBurst
	return middleware.RateLimitConfig{
		DefaultGroup: groupDefault,
		GroupFor:     rateLimitGroup,
		Rules: map[string]middleware.RateLimitRule{
			groupDefault:    {Rate: rps, Burst: burst},
			groupGeneration: {Rate: rps / 5, Burst: max(burst/4, 1)},
			groupPolling:    {Rate: rps * 4, Burst: burst * 4},
		},
	}
}

func rateLimitGroup(c *gin.Context) string {
	route := c.FullPath()
	switch {
	case c.Request.Method == http.MethodPost && strings.HasSuffix(route, "/generate"):
		return groupGeneration
	case c.Request.Method == http.MethodGet && strings.HasPrefix(route, "/api/v1/generation-jobs"):
		return groupPolling
	default:
		return groupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
