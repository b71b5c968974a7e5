package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"creditmemo-backend/internal/shared/telemetry"
)

type provider struct {
	name      string
	model     string
	completer Completer
	limiter   *rate.Limiter
}

// Router dispatches memo generation to the configured providers.
type Router struct {
	mu          sync.RWMutex
	providers   map[string]*provider
	order       []string
	defaultName string
}

// NewRouter constructs an empty router. defaultProvider is used when a
// request names no provider; it must be registered before use.
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers:   make(map[string]*provider),
		defaultName: normalize(defaultProvider),
	}
}

// Register adds a provider. requestsPerMinute <= 0 disables throttling.
func (r *Router) Register(name, model string, c Completer, requestsPerMinute int) {
	p := &provider{name: normalize(name), model: model, completer: c}
	if requestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.name]; !ok {
		r.order = append(r.order, p.name)
	}
	r.providers[p.name] = p
	if r.defaultName == "" {
		r.defaultName = p.name
	}
}

// Providers returns the registered provider names in registration order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Default returns the provider used when a request names none.
func (r *Router) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Model returns the model configured for a provider.
func (r *Router) Model(name string) string {
	p, err := r.lookup(name)
	if err != nil {
		return ""
	}
	return p.model
}

// Resolve maps a requested provider name to a registered one. An empty name
// resolves to the default provider.
func (r *Router) Resolve(name string) (string, error) {
	p, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	return p.name, nil
}

func (r *Router) lookup(name string) (*provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := normalize(name)
	if key == "" {
		key = r.defaultName
	}
	p, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	return p, nil
}

// GenerateMemo builds the memo prompt and sends it to the requested provider
// once. Failures are returned as *ProviderError.
func (r *Router) GenerateMemo(ctx context.Context, in MemoInput) (Memo, error) {
	p, err := r.lookup(in.Provider)
	if err != nil {
		return Memo{}, err
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Memo{}, &ProviderError{Provider: p.name, Kind: KindTimeout, Err: fmt.Errorf("throttle wait: %w", err)}
		}
	}

	prompt := BuildMemoPrompt(in)
	start := time.Now()
	telemetry.Info("llm.request", map[string]any{
		"provider":     p.name,
		"model":        p.model,
		"prompt_chars": len(prompt),
	})

	content, err := p.completer.Complete(ctx, prompt)
	durationMs := time.Since(start).Milliseconds()
	if err == nil && strings.TrimSpace(content) == "" {
		err = &ProviderError{Provider: p.name, Kind: KindBadResponse, Err: errors.New("empty response")}
	}
	if err != nil {
		pe := Classify(p.name, err)
		telemetry.Error("llm.error", map[string]any{
			"provider":    p.name,
			"kind":        string(pe.Kind),
			"status_code": pe.StatusCode,
			"duration_ms": durationMs,
			"error":       err,
		})
		return Memo{}, pe
	}

	telemetry.Info("llm.response", map[string]any{
		"provider":       p.name,
		"response_chars": len(content),
		"duration_ms":    durationMs,
	})
	return Memo{Provider: p.name, Model: p.model, Content: strings.TrimSpace(content)}, nil
}

// NormalizeProvider lower-cases a provider name and maps aliases.
func NormalizeProvider(name string) string {
	return normalize(name)
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "gemini" {
		return "google"
	}
	return n
}
