package llm

import (
	"context"

	"veridex/internal/model"
)

// Provider defines the interface for reasoning-model backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete returns the raw text completion for a prompt
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is the minimal completion contract every backend accepts
type CompletionRequest struct {
	// Prompt is the user-facing prompt text
	Prompt string

	// System overrides the default system instruction (optional)
	System string

	// Model overrides the configured model (optional)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// defaultSystem keeps every backend on the same contract: answer the task,
// and when the prompt asks for JSON, emit JSON only.
const defaultSystem = "You are a careful fact-checking assistant. " +
	"When the prompt asks for JSON, return strictly valid JSON and nothing else."

// Config holds reasoning-model provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests, seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Timeout:   15,
		MaxTokens: 1000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:   mc.Provider,
		Model:      mc.Model,
		APIKey:     mc.APIKey,
		BaseURL:    mc.BaseURL,
		Timeout:    mc.Timeout,
		MaxTokens:  mc.MaxTokens,
		HTTPProxy:  mc.HTTPProxy,
		HTTPSProxy: mc.HTTPSProxy,
	}
}
