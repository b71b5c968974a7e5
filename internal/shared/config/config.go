package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string
	Env             string
	MaxUploadBytes  int64

	LLMProviders         []string
	LLMDefaultProvider   string
	LLMMaxTokens         int
	LLMRequestsPerMinute float64
	OpenAIAPIKey         string
	OpenAIModel          string
	GoogleAPIKey         string
	GoogleModel          string
	OllamaURL            string
	OllamaModel          string

	GenerationDispatch string
	GenerationWorkers  int
	SQSQueueURL        string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	providers := normalizeProviders(splitAndTrim(getEnv("LLM_PROVIDERS", getEnv("LLM_PROVIDER", "google"))))
	defaultProvider := strings.ToLower(strings.TrimSpace(getEnv("LLM_DEFAULT_PROVIDER", "")))
	if defaultProvider == "" && len(providers) > 0 {
		defaultProvider = providers[0]
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:     dbURL,
		Env:             env,
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,

		LLMProviders:         providers,
		LLMDefaultProvider:   defaultProvider,
		LLMMaxTokens:         getEnvInt("LLM_MAX_TOKENS", 2000),
		LLMRequestsPerMinute: getEnvFloat("LLM_REQUESTS_PER_MINUTE", 30),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GoogleAPIKey:         getEnv("GOOGLE_API_KEY", ""),
		GoogleModel:          getEnv("GOOGLE_MODEL", "gemini-1.5-pro"),
		OllamaURL:            getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:          getEnv("OLLAMA_MODEL", "llama3"),

		GenerationDispatch: normalizeDispatch(getEnv("GENERATION_DISPATCH", "local")),
		GenerationWorkers:  getEnvInt("GENERATION_WORKERS", 4),
		SQSQueueURL:        getEnv("CM_SQS_QUEUE_URL", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),
	}
}

// IsDevLike reports whether env allows in-memory fallbacks and unconfigured providers.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config %s invalid number %q, using %g", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeProviders(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.ToLower(p)
		if p == "gemini" {
			p = "google"
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeDispatch(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "local"
	}
}
