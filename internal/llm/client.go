package llm

import (
	"context"
	"fmt"
	"time"
)

// Client is an inference backend: text in, text out. No structured-output
// capability is assumed.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

type Options struct {
	Provider    string
	Host        string
	BaseURL     string // hosted API endpoint override; empty uses the provider default
	Model       string
	APIKey      string
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// New builds the client for opts.Provider.
func New(ctx context.Context, opts Options) (Client, error) {
	switch opts.Provider {
	case "ollama", "":
		return NewOllamaClient(opts), nil
	case "gemini":
		return NewGeminiClient(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", opts.Provider)
	}
}
