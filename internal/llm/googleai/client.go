// Package googleai provides the Gemini memo provider backed by langchaingo.
package googleai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/googleai"

	"creditmemo-backend/internal/llm"
)

// Provider is the router name of this provider.
const Provider = "google"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-pro"

// New constructs a Gemini completer.
func New(ctx context.Context, apiKey, model string, maxTokens int) (*llm.LangChainCompleter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required for %s", Provider)
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init googleai: %w", err)
	}
	return &llm.LangChainCompleter{Provider: Provider, Model: client, MaxTokens: maxTokens}, nil
}
