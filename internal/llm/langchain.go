package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ContentGenerator is the part of a langchaingo llms.Model used for memos.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangChainCompleter adapts a langchaingo model to Completer.
type LangChainCompleter struct {
	Provider  string
	Model     ContentGenerator
	MaxTokens int
}

// Complete sends the system prompt and the memo prompt as a two-message chat.
func (c *LangChainCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	var opts []llms.CallOption
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}

	resp, err := c.Model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", Classify(c.Provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", &ProviderError{Provider: c.Provider, Kind: KindBadResponse, Err: errors.New("response missing choices")}
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", &ProviderError{Provider: c.Provider, Kind: KindBadResponse, Err: errors.New("response empty content")}
	}
	return text, nil
}

var _ Completer = (*LangChainCompleter)(nil)
