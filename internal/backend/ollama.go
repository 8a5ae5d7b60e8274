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

// Ollama is a backend over a local Ollama server. Free and offline, useful
// as a cheap first member of an ensemble.
type Ollama struct {
	client   *http.Client
	name     string
	model    string
	endpoint string
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func NewOllama(name, model, baseURL string) *Ollama {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = "http://127.0.0.1:11434"
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/api/generate") {
		url += "/api/generate"
	}
	if name == "" {
		name = "ollama/" + model
	}
	return &Ollama{
		client:   &http.Client{Timeout: defaultTimeout},
		name:     name,
		model:    model,
		endpoint: url,
	}
}

func (b *Ollama) Name() string { return b.name }

func (b *Ollama) Judge(ctx context.Context, req Request) (Verdict, error) {
	raw, err := b.Complete(ctx, req)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(b.name, raw)
}

func (b *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	return retry(ctx, b.name, func() (string, error) {
		body, err := json.Marshal(ollamaGenerateRequest{
			Model:  b.model,
			Prompt: req.Prompt,
			Stream: false,
		})
		if err != nil {
			return "", err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
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
			return "", fmt.Errorf("ollama request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}

		var parsed ollamaGenerateResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", err
		}
		if parsed.Response == "" {
			return "", fmt.Errorf("empty response from model %s", b.model)
		}
		return parsed.Response, nil
	})
}
