package llm

import (
	"context"
	"errors"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single-turn, stateless prompt and returns the reply text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the input for one model call
type CompletionRequest struct {
	// Prompt is the user message
	Prompt string

	// System is an optional system instruction; empty sends the prompt alone
	System string

	// Model is the specific model to use (provider-specific, falls back to Config.Model)
	Model string

	// Temperature is sent as-is, including zero
	Temperature float64

	// MaxTokens limits the response length (falls back to Config.MaxTokens)
	MaxTokens int
}

// CompletionResponse contains the model's reply
type CompletionResponse struct {
	// Text is the trimmed reply text
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int

	// Cached is true when the reply was served from a cache
	Cached bool
}

var (
	// ErrEmptyResponse is returned when a provider replies without any content
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrUnknownProvider is returned by NewProvider for unsupported names
	ErrUnknownProvider = errors.New("unknown LLM provider")
)

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic/Gemini
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Timeout:   30,
		MaxTokens: 10, // A single letter needs very few tokens
	}
}

// resolve fills request defaults from the provider configuration
func resolve(req CompletionRequest, config Config, defaultModel string) CompletionRequest {
	if req.Model == "" {
		req.Model = config.Model
	}
	if req.Model == "" {
		req.Model = defaultModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = config.MaxTokens
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 10
	}
	return req
}
