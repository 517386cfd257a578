package model

import (
	"context"

	ctxpkg "github.com/stupiduntilnot/kontempo/internal/context"
)

// CompletionResponse is the common response model for model providers.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Provider turns an assembled message list into reply text.
type Provider interface {
	ChatCompletion(ctx context.Context, messages []ctxpkg.Message) (CompletionResponse, error)
}
