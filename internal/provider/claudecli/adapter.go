// Package claudecli provides a provider that shells out to the Claude Code
// CLI. Intended for development use, where flat subscription billing makes
// each call free at the margin.
package claudecli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
)

const (
	providerName = "claude_cli"
	modelName    = "claude-cli"

	// Rough token estimate: ~4 chars per token.
	charsPerToken = 4
)

// Config contains Claude CLI provider configuration.
type Config struct {
	Path         string        `env:"CLAUDE_CLI_PATH"    envDefault:"claude"`
	Timeout      time.Duration `env:"CLAUDE_CLI_TIMEOUT" envDefault:"5m"`
	AllowedTools []string      `env:"CLAUDE_CLI_ALLOWED_TOOLS" envSeparator:","`
}

// Provider implements the domain.Provider interface over the claude CLI.
type Provider struct {
	name         string
	path         string
	timeout      time.Duration
	allowedTools []string
}

// NewProvider creates a new Claude CLI provider.
func NewProvider(config Config) *Provider {
	path := config.Path
	if path == "" {
		path = "claude"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Provider{
		name:         providerName,
		path:         path,
		timeout:      timeout,
		allowedTools: config.AllowedTools,
	}
}

// Complete generates a response by invoking the claude CLI.
// A missing binary, a timeout or a non-zero exit all surface as a failed
// response rather than an error.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	fullPrompt := p.buildPrompt(req)

	args := []string{"-p", fullPrompt}
	if req.Model != "" && req.Model != modelName {
		args = append(args, "--model", req.Model)
	}
	if len(p.allowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(p.allowedTools, ","))
	}

	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logger.Debug("invoking claude CLI", observability.String("path", p.path))

	start := time.Now()
	cmd := exec.CommandContext(cmdCtx, p.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	latency := time.Since(start)

	switch {
	case err != nil && errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
		return p.failedResponse(
			fmt.Sprintf("Claude CLI timed out after %s", p.timeout),
			"TimeoutError",
			latency,
		), nil

	case err != nil && isNotFound(err):
		return p.failedResponse(
			fmt.Sprintf("Claude CLI not found at %q. Install Claude Code: https://docs.anthropic.com/en/docs/claude-code", p.path),
			"NotFoundError",
			0,
		), nil

	case err != nil:
		return p.failedResponse(
			fmt.Sprintf("Claude CLI error: %v: %s", err, strings.TrimSpace(stderr.String())),
			"RuntimeError",
			latency,
		), nil
	}

	content := strings.TrimSpace(stdout.String())

	inputTokens := max(1, len(fullPrompt)/charsPerToken)
	outputTokens := 0
	if content != "" {
		outputTokens = max(1, len(content)/charsPerToken)
	}

	return &domain.CompletionResponse{
		Content:  content,
		Success:  true,
		Provider: p.name,
		Model:    modelName,
		Usage: domain.Usage{
			PromptTokens:     inputTokens,
			CompletionTokens: outputTokens,
			TotalTokens:      inputTokens + outputTokens,
			Cost:             0.0,
		},
		Latency:    latency,
		FinishTime: time.Now(),
	}, nil
}

// ListModels returns the models this provider exposes.
func (p *Provider) ListModels(_ context.Context) []string {
	return []string{modelName}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// buildPrompt flattens the conversation into a single prompt string.
func (p *Provider) buildPrompt(req *domain.CompletionRequest) string {
	var b strings.Builder
	if req.System != "" {
		fmt.Fprintf(&b, "System: %s\n\n", req.System)
	}
	for i, msg := range req.EffectiveMessages() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", msg.Role, msg.Content)
	}
	return b.String()
}

func (p *Provider) failedResponse(msg, kind string, latency time.Duration) *domain.CompletionResponse {
	return &domain.CompletionResponse{
		Content:  "",
		Success:  false,
		Provider: p.name,
		Model:    modelName,
		Latency:  latency,
		ErrorHistory: []domain.ErrorRecord{{
			Provider:  p.name,
			Error:     msg,
			ErrorType: kind,
			Timestamp: time.Now(),
		}},
	}
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound)
}
