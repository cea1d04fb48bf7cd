package ai

import "context"

// Runtime is the interface implemented by every model backend.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI and server for selection.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	// ProviderLocal is accepted as an alias for ProviderOllama.
	ProviderLocal = "local"
)
