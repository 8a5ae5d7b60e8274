package backend

import (
	"context"
	"fmt"
	"strings"
)

// Options configures backend construction.
type Options struct {
	Provider string // "openai", "openrouter", "gemini", "ollama"
	Name     string // Provenance label; defaults to the model id
	APIKey   string
	Model    string
	BaseURL  string
}

// New builds a backend for the given provider.
func New(ctx context.Context, opts Options) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))

	switch provider {
	case "gemini":
		return NewGemini(ctx, opts.Name, opts.APIKey, opts.Model)
	case "openai", "openrouter", "openai-compatible":
		baseURL := opts.BaseURL
		if provider == "openrouter" && baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		return NewOpenAICompatible(opts.Name, opts.APIKey, opts.Model, baseURL), nil
	case "ollama":
		return NewOllama(opts.Name, opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported backend provider: %s", opts.Provider)
	}
}
