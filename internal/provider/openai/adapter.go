// Package openai provides a provider for the OpenAI API using the official
// SDK. It implements the domain.Provider interface and handles conversion
// between domain types and SDK types. The same adapter also backs the
// OpenAI-compatible OpenRouter and Ollama providers (see compat.go).
package openai

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
)

// Provider implements the domain.Provider interface for OpenAI and
// OpenAI-compatible endpoints.
type Provider struct {
	client       openai.Client
	name         string
	defaultModel string
	models       []string
}

// NewProvider creates a new OpenAI provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	if config.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}

	return &Provider{
		client:       openai.NewClient(opts...),
		name:         "openai",
		defaultModel: config.DefaultModel,
		models:       SupportedModels(),
	}, nil
}

// Complete sends a completion request and returns the full response.
// API failures (timeouts, connection errors, upstream status codes) are
// encoded into a failed response rather than returned as errors.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling chat completions API", observability.String("provider", p.name))

	start := time.Now()
	params := p.toSDKParams(req)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Warn("chat completions API call failed",
			observability.String("provider", p.name),
			observability.Error(err))
		return p.failedResponse(req, err, time.Since(start)), nil
	}

	logger.Debug("chat completions API call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return p.toDomainResponse(resp, time.Since(start)), nil
}

// ListModels returns the models this provider exposes.
func (p *Provider) ListModels(_ context.Context) []string {
	models := make([]string, len(p.models))
	copy(models, p.models)
	return models
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) effectiveModel(req *domain.CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

// toSDKParams converts domain request to SDK ChatCompletionNewParams.
func (p *Provider) toSDKParams(req *domain.CompletionRequest) openai.ChatCompletionNewParams {
	source := req.EffectiveMessages()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(source)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range source {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.effectiveModel(req)),
		Messages: messages,
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	return params
}

// toDomainResponse converts SDK response to domain response.
func (p *Provider) toDomainResponse(resp *openai.ChatCompletion, latency time.Duration) *domain.CompletionResponse {
	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &domain.CompletionResponse{
		ID:       resp.ID,
		Content:  content,
		Success:  true,
		Provider: p.name,
		Model:    string(resp.Model),
		Usage: domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		Latency:    latency,
		FinishTime: time.Now(),
	}
}

func (p *Provider) failedResponse(req *domain.CompletionRequest, err error, latency time.Duration) *domain.CompletionResponse {
	return &domain.CompletionResponse{
		Content:  "",
		Success:  false,
		Provider: p.name,
		Model:    p.effectiveModel(req),
		Latency:  latency,
		ErrorHistory: []domain.ErrorRecord{{
			Provider:  p.name,
			Error:     err.Error(),
			ErrorType: "APIError",
			Timestamp: time.Now(),
		}},
	}
}
