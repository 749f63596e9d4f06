package llm

import "fmt"

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider talks to OpenRouter through its OpenAI-compatible
// API. Model IDs are vendor-prefixed routes such as
// "anthropic/claude-3.5-haiku".
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	inner, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: baseURL,
		Headers: openRouterHeaders(cfg),
	})
	if err != nil {
		return nil, err
	}
	// Routes are used verbatim; per-request models must be routes too.
	inner.models = map[string]string{cfg.Model: cfg.Model}

	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

// openRouterHeaders builds the app attribution headers OpenRouter reads.
func openRouterHeaders(cfg OpenRouterConfig) map[string]string {
	h := map[string]string{}
	if cfg.AppName != "" {
		h["X-Title"] = cfg.AppName
	}
	if cfg.AppURL != "" {
		h["HTTP-Referer"] = cfg.AppURL
	}
	return h
}
