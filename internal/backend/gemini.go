package backend

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini is a backend over Google's Gemini API.
type Gemini struct {
	client *genai.Client
	name   string
	model  string
}

func NewGemini(ctx context.Context, name, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if name == "" {
		name = model
	}
	return &Gemini{client: client, name: name, model: model}, nil
}

func (b *Gemini) Name() string { return b.name }

func (b *Gemini) Judge(ctx context.Context, req Request) (Verdict, error) {
	raw, err := b.Complete(ctx, req)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(b.name, raw)
}

func (b *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	return retry(ctx, b.name, func() (string, error) {
		resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(req.Prompt), nil)
		if err != nil {
			return "", err
		}
		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("empty response from model %s", b.model)
		}
		return text, nil
	})
}
