package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAICompatible speaks the OpenAI chat-completions API. Works with
// OpenAI, OpenRouter, Grok, Qwen, Together, or any other compatible
// endpoint: pass the model identifier and the provider's base URL.
type OpenAICompatible struct {
	client   *http.Client
	name     string
	apiKey   string
	model    string
	endpoint string
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAICompatible builds a chat-completions backend. An empty baseURL
// targets OpenAI directly; otherwise the endpoint is normalized to
// <base>/v1/chat/completions.
func NewOpenAICompatible(name, apiKey, model, baseURL string) *OpenAICompatible {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	} else {
		endpoint = strings.TrimRight(endpoint, "/")
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			if strings.HasSuffix(endpoint, "/v1") {
				endpoint += "/chat/completions"
			} else {
				endpoint += "/v1/chat/completions"
			}
		}
	}
	if name == "" {
		name = model
	}
	return &OpenAICompatible{
		client:   &http.Client{Timeout: defaultTimeout},
		name:     name,
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
	}
}

func (b *OpenAICompatible) Name() string { return b.name }

// Judge sends the judgment prompt and parses the structured verdict.
func (b *OpenAICompatible) Judge(ctx context.Context, req Request) (Verdict, error) {
	if strings.TrimSpace(b.apiKey) == "" {
		return Verdict{}, &Error{Backend: b.name, Attempts: 1, Err: fmt.Errorf("api key is required")}
	}
	raw, err := retry(ctx, b.name, func() (string, error) {
		return b.complete(ctx, req)
	})
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(b.name, raw)
}

// Complete returns the raw model response without verdict parsing. Used by
// callers that define their own response shape (decomposer, rule evaluator,
// scourer).
func (b *OpenAICompatible) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(b.apiKey) == "" {
		return "", &Error{Backend: b.name, Attempts: 1, Err: fmt.Errorf("api key is required")}
	}
	return retry(ctx, b.name, func() (string, error) {
		return b.complete(ctx, req)
	})
}

func (b *OpenAICompatible) complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxToken
	}
	body, err := json.Marshal(openAIChatRequest{
		Model:       b.model,
		Messages:    []openAIChatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in chat response")
	}
	return parsed.Choices[0].Message.Content, nil
}
