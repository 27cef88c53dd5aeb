// Package gemini implements the ai.Provider interface over the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Config for the Gemini provider.
type Config struct {
	APIKey string
	Model  string
}

// Client calls the Gemini API for text completions.
type Client struct {
	config Config
	client *genai.Client
}

// NewClient creates a Gemini provider.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Client{config: cfg, client: client}, nil
}

func (c *Client) Name() string {
	return "gemini/" + c.config.Model
}

// Complete returns the model output for the prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return text, nil
}
