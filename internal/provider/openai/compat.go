package openai

import (
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI-compatible providers reuse this adapter with a different base URL
// and provider name.

// NewOpenRouterProvider creates a provider for openrouter.ai.
func NewOpenRouterProvider(config OpenRouterConfig) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenRouter API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	return &Provider{
		client:       openai.NewClient(opts...),
		name:         "openrouter",
		defaultModel: config.DefaultModel,
		models:       []string{},
	}, nil
}

// NewOllamaProvider creates a provider for a local Ollama server.
// Ollama ignores the API key but the OpenAI-compatible endpoint requires one.
func NewOllamaProvider(config OllamaConfig) (*Provider, error) {
	if config.Host == "" {
		return nil, errors.New("Ollama host is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey("ollama"),
		option.WithBaseURL(fmt.Sprintf("%s/v1", config.Host)),
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	return &Provider{
		client:       openai.NewClient(opts...),
		name:         "ollama",
		defaultModel: config.DefaultModel,
		models:       []string{},
	}, nil
}
