// Package anthropic provides a provider for the Anthropic Messages API using
// the official SDK.
package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
)

const defaultMaxTokens = 4096

// Provider implements the domain.Provider interface for Anthropic.
type Provider struct {
	client       anthropic.Client
	name         string
	defaultModel string
}

// NewProvider creates a new Anthropic provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
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

	return &Provider{
		client:       anthropic.NewClient(opts...),
		name:         "anthropic",
		defaultModel: config.DefaultModel,
	}, nil
}

// Complete sends a completion request and returns the full response.
// API failures are encoded into a failed response rather than returned as
// errors.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling Anthropic messages API")

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages, system := p.toSDKMessages(req)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		logger.Warn("Anthropic messages API call failed", observability.Error(err))
		return &domain.CompletionResponse{
			Content:  "",
			Success:  false,
			Provider: p.name,
			Model:    model,
			Latency:  time.Since(start),
			ErrorHistory: []domain.ErrorRecord{{
				Provider:  p.name,
				Error:     err.Error(),
				ErrorType: "APIError",
				Timestamp: time.Now(),
			}},
		}, nil
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &domain.CompletionResponse{
		ID:       resp.ID,
		Content:  content.String(),
		Success:  true,
		Provider: p.name,
		Model:    model,
		Usage: domain.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Latency:    time.Since(start),
		FinishTime: time.Now(),
	}, nil
}

// ListModels returns the models this provider exposes.
func (p *Provider) ListModels(_ context.Context) []string {
	return []string{p.defaultModel}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// toSDKMessages converts the conversation, folding system-role messages into
// the system prompt alongside req.System.
func (p *Provider) toSDKMessages(req *domain.CompletionRequest) ([]anthropic.MessageParam, string) {
	source := req.EffectiveMessages()

	var systemParts []string
	if req.System != "" {
		systemParts = append(systemParts, req.System)
	}

	messages := make([]anthropic.MessageParam, 0, len(source))
	for _, msg := range source {
		switch msg.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		case "system":
			systemParts = append(systemParts, msg.Content)
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return messages, strings.Join(systemParts, "\n\n")
}
