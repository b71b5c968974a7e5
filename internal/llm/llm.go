package llm

import (
	"context"
	"fmt"
	"strings"

	"creditmemo-backend/internal/financial"
)

// SystemPrompt is sent as the system message by every chat provider.
const SystemPrompt = "You are a helpful financial analyst assistant."

// Completer sends a single prompt to a provider and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// MemoInput captures the inputs needed to write a credit memo.
type MemoInput struct {
	Provider     string
	CompanyName  string
	DocumentText string
	Methodology  string
	Financials   financial.Data
}

// Memo is the provider output for one generation run.
type Memo struct {
	Provider string
	Model    string
	Content  string
}

// PlaceholderCompleter returns a canned memo. It stands in for providers
// whose credentials are not configured in development.
type PlaceholderCompleter struct {
	Provider string
}

// Complete returns a fixed memo outline that mentions the provider.
func (p PlaceholderCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "1. Executive Summary\n\nThis memo was produced by the %s placeholder provider because no credentials are configured.\n\n", p.Provider)
	b.WriteString("2. Financial Highlights\n\nSee the extracted financial data attached to the document.\n\n")
	b.WriteString("3. Key Ratios\n\nNot assessed.\n\n")
	b.WriteString("4. Risk Analysis & Commentary\n\nNot assessed.\n\n")
	fmt.Fprintf(&b, "5. Final Credit Recommendation\n\nNo recommendation (prompt length %d characters).", len(prompt))
	return b.String(), nil
}
