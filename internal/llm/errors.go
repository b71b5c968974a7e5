package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrUnsupportedProvider is returned for provider names the router does not know.
var ErrUnsupportedProvider = errors.New("unsupported llm provider")

// ErrorKind groups provider failures by how a caller should react to them.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindNetwork     ErrorKind = "network"
	KindTimeout     ErrorKind = "timeout"
	KindBadResponse ErrorKind = "bad_response"
	KindUnknown     ErrorKind = "unknown"
)

// ProviderError is a failed provider call.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (%s, status %d): %s", e.Provider, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s provider error (%s): %s", e.Provider, e.Kind, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status code returned by a provider API.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindNetwork
	case code >= 400:
		return KindBadResponse
	default:
		return KindUnknown
	}
}

// Classify wraps err in a ProviderError, inferring its kind from the error
// chain and, for SDKs that only expose messages, from the message text.
func Classify(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Provider == "" {
			pe.Provider = provider
		}
		return pe
	}
	return &ProviderError{Provider: provider, Kind: kindOf(err), Err: err}
}

func kindOf(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "api key", "api_key", "authentication", "unauthorized", "permission denied", "401", "403"):
		return KindAuth
	case containsAny(msg, "quota", "rate limit", "resource exhausted", "resource_exhausted", "too many requests", "429"):
		return KindRateLimit
	case containsAny(msg, "timeout", "deadline"):
		return KindTimeout
	case containsAny(msg, "connection refused", "no such host", "connection reset", "eof"):
		return KindNetwork
	default:
		return KindUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
