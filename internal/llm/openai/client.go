package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"creditmemo-backend/internal/llm"
)

const (
	// Provider is the router name of this provider.
	Provider     = "openai"
	DefaultModel = "gpt-4o-mini"
	apiURL       = "https://api.openai.com/v1/chat/completions"
)

// Client implements llm.Completer using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithEndpoint overrides the chat completions URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithMaxTokens bounds the completion length.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	c := &Client{
		apiKey:   apiKey,
		model:    model,
		endpoint: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete returns the model's reply to the prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	if c.maxTokens > 0 {
		reqBody.MaxTokens = c.maxTokens
	}
	if !isGPT5(c.model) {
		temp := float32(0.2)
		reqBody.Temperature = &temp
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", c.fail(llm.KindUnknown, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", c.fail(llm.KindUnknown, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", c.fail(llm.KindTimeout, 0, fmt.Errorf("openai request timeout: %w", err))
		}
		return "", llm.Classify(Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.fail(llm.KindNetwork, resp.StatusCode, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", c.fail(llm.KindForStatus(resp.StatusCode), resp.StatusCode, fmt.Errorf("openai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		return "", c.fail(llm.KindBadResponse, resp.StatusCode, fmt.Errorf("openai response parse: %w", err))
	}
	if resp.StatusCode >= 400 || parsed.Error != nil {
		msg := strings.TrimSpace(string(body))
		if parsed.Error != nil {
			msg = fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Type)
		}
		kind := llm.KindForStatus(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Type == "insufficient_quota" {
			kind = llm.KindRateLimit
		}
		return "", c.fail(kind, resp.StatusCode, fmt.Errorf("openai http status %d: %s", resp.StatusCode, msg))
	}
	if len(parsed.Choices) == 0 {
		return "", c.fail(llm.KindBadResponse, resp.StatusCode, errors.New("openai response missing choices"))
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", c.fail(llm.KindBadResponse, resp.StatusCode, errors.New("openai response empty content"))
	}
	return content, nil
}

func (c *Client) fail(kind llm.ErrorKind, status int, err error) error {
	return &llm.ProviderError{Provider: Provider, Kind: kind, StatusCode: status, Err: err}
}

// isGPT5 reports models that reject a custom temperature.
func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Completer = (*Client)(nil)
