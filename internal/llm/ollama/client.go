// Package ollama provides the local-model memo provider backed by langchaingo.
package ollama

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"

	"creditmemo-backend/internal/llm"
)

const (
	Provider         = "ollama"
	DefaultModel     = "llama3"
	DefaultServerURL = "http://localhost:11434"
)

// New constructs an Ollama completer.
func New(serverURL, model string, maxTokens int) (*llm.LangChainCompleter, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if strings.TrimSpace(serverURL) == "" {
		serverURL = DefaultServerURL
	}
	client, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	return &llm.LangChainCompleter{Provider: Provider, Model: client, MaxTokens: maxTokens}, nil
}
