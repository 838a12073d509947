package models

import "context"

// AIProvider is the core interface for the generative-AI backend.
// Never call a specific provider directly — always inject this interface.
type AIProvider interface {
	// Generate sends one prompt and returns the raw model text plus token usage.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	// Name returns the provider identifier (e.g., "gemini").
	Name() string
	// Model returns the model identifier used for generation.
	Model() string
}

// GenerateRequest is the input to a single generation call.
type GenerateRequest struct {
	Prompt          string
	Temperature     float32
	MaxOutputTokens int
	// ResponseSchema, when non-nil, asks the provider for schema-constrained
	// JSON output. Providers that cannot enforce it may ignore it; callers
	// must still validate the response shape.
	ResponseSchema map[string]any
}

// GenerateResponse is the output of a single generation call.
type GenerateResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
}
