// Package ai provides text completion providers for structured extraction.
// This is part of the platform layer and contains no business logic.
package ai

import "context"

// Provider produces a text completion for a prompt. Implementations wrap a
// single upstream LLM API.
type Provider interface {
	// Name identifies the provider for logging.
	Name() string
	// Complete returns the raw model output for the prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}
