package client

import (
	"context"
	"fmt"
	"time"

	"webforge/internal/config"
	"webforge/internal/logging"
	"webforge/internal/security"
)

// Options selects and configures a provider for one request.
type Options struct {
	Provider        string
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float32
	MaxOutputTokens int32
	HTTPTimeout     time.Duration
}

// OptionsFromConfig fills Options from the loaded configuration. Non-empty
// request overrides win over configured values.
func OptionsFromConfig(cfg *config.Config, provider, apiKey, model string) Options {
	if provider == "" {
		provider = cfg.Provider.Name
	}
	if apiKey == "" {
		apiKey = cfg.Provider.KeyFor(provider)
	}
	if model == "" && provider == cfg.Provider.Name {
		model = cfg.Provider.Model
	}
	baseURL := ""
	if provider == cfg.Provider.Name {
		baseURL = cfg.Provider.BaseURL
	}
	if provider == "ollama" && baseURL == "" {
		baseURL = cfg.Provider.OllamaHost
	}
	return Options{
		Provider:        provider,
		APIKey:          apiKey,
		Model:           model,
		BaseURL:         baseURL,
		Temperature:     cfg.Provider.Temperature,
		MaxOutputTokens: cfg.Provider.MaxOutputTokens,
		HTTPTimeout:     cfg.Provider.HTTPTimeout,
	}
}

// RequiresKey reports whether a provider needs an API key.
func RequiresKey(provider string) bool {
	return provider != "ollama" && provider != "fake"
}

// New creates a client for opts.Provider.
func New(ctx context.Context, opts Options) (Client, error) {
	if opts.Model == "" {
		opts.Model = DefaultModels[opts.Provider]
	}
	logging.Debug("creating client",
		"provider", opts.Provider,
		"model", opts.Model,
		"key", security.MaskKey(opts.APIKey))

	switch opts.Provider {
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:          opts.APIKey,
			Model:           opts.Model,
			BaseURL:         opts.BaseURL,
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxOutputTokens,
			HTTPTimeout:     opts.HTTPTimeout,
		})
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:      opts.APIKey,
			BaseURL:     opts.BaseURL,
			Model:       opts.Model,
			MaxTokens:   opts.MaxOutputTokens,
			Temperature: opts.Temperature,
			HTTPTimeout: opts.HTTPTimeout,
		})
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL:     opts.BaseURL,
			APIKey:      opts.APIKey,
			Model:       opts.Model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxOutputTokens,
			HTTPTimeout: opts.HTTPTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", opts.Provider)
	}
}
