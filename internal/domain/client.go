package domain

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/davidbz/howl/internal/observability"
)

const (
	defaultMaxRetries  = 3
	defaultInitialWait = 1 * time.Second
	defaultMaxWait     = 30 * time.Second

	// Number of recent errors injected into retry prompts.
	errorContextWindow = 3
)

// ClientConfig contains the retry and failover settings for a Client.
type ClientConfig struct {
	// MaxRetries is the retry budget per provider (minimum 1).
	MaxRetries int

	// InitialWait is the backoff before the second attempt; it doubles on
	// every retry up to MaxWait.
	InitialWait time.Duration
	MaxWait     time.Duration

	// CallTimeout bounds the total wall-clock time of one Call across all
	// retries and fallbacks. Zero means unbounded.
	CallTimeout time.Duration

	// DefaultModel is used when a request does not name a model.
	DefaultModel string
}

// Client orchestrates completion calls across registered providers with
// self-healing retry and ordered failover.
//
// Self-healing means failed attempts feed their error context back into
// subsequent retry prompts so the LLM can self-correct. When the primary
// provider exhausts its retry budget the client fails over to the next
// candidate.
//
// A Client is safe for concurrent use; providers resolved from the registry
// are not invoked concurrently within a single call, but a factory returning
// a shared instance must guarantee its own reentrancy.
type Client struct {
	registry       ProviderRegistry
	router         Router
	costCalculator CostCalculator
	cache          ResponseCache
	events         EventPublisher
	cfg            ClientConfig
	stats          *StatsTracker

	// Overridable in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewClient creates a new orchestration client (DI constructor).
// costCalculator, cache and events may be nil; the corresponding concerns
// are then disabled.
func NewClient(
	registry ProviderRegistry,
	router Router,
	costCalculator CostCalculator,
	cache ResponseCache,
	events EventPublisher,
	cfg ClientConfig,
) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = defaultInitialWait
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}

	return &Client{
		registry:       registry,
		router:         router,
		costCalculator: costCalculator,
		cache:          cache,
		events:         events,
		cfg:            cfg,
		stats:          NewStatsTracker(),
		sleep:          sleepContext,
		jitter:         func() float64 { return 0.1 + rand.Float64()*0.2 },
	}
}

// Call executes req with retry, backoff and provider failover.
//
// The returned error is non-nil only for configuration mistakes (nil request,
// neither prompt nor messages). Every other outcome, including total
// exhaustion of all candidates, is reported inside the response: a terminal
// failure carries Provider=ProviderAllFailed and the full error history.
func (c *Client) Call(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrMissingInput)
	}
	if req.Prompt == "" && len(req.Messages) == 0 {
		return nil, ErrMissingInput
	}

	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}
	messages := req.EffectiveMessages()
	logger := observability.FromContext(ctx)

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, req)
		if err == nil && cached != nil {
			logger.Info("cache hit, skipping providers",
				observability.String("model", model))
			return cached, nil
		}
	}

	registered := make(map[string]bool)
	for _, name := range c.registry.List(ctx) {
		registered[name] = true
	}

	var history []ErrorRecord
	for _, name := range c.router.Candidates(ctx, &RouteRequest{Provider: req.Provider}) {
		// Optimistic fallback lists may name unconfigured providers.
		if !registered[name] {
			continue
		}

		result := c.tryProvider(ctx, name, req, messages, model, history)

		if result.Success {
			if len(history) > 0 {
				// Errors from abandoned providers stay in history,
				// prepended before this provider's own records.
				result.ErrorHistory = append(append([]ErrorRecord{}, history...), result.ErrorHistory...)
			}
			result.TotalTime = time.Since(start)
			c.stats.Record(name, true, result.TotalTime)
			c.finishSuccess(ctx, req, result)
			return result, nil
		}

		history = append(history, result.ErrorHistory...)
		c.stats.Record(name, false, time.Since(start))
		c.publish(ctx, "provider_exhausted", map[string]any{
			"provider": name,
			"attempts": result.Attempts,
		})
		logger.Warn("provider exhausted, failing over",
			observability.String("provider", name),
			observability.Int("attempts", result.Attempts),
			observability.Int("errors_so_far", len(history)))

		if ctx.Err() != nil {
			break
		}
	}

	c.publish(ctx, "call_failed", map[string]any{
		"errors":     len(history),
		"total_time": time.Since(start).String(),
	})

	if model == "" {
		model = "unknown"
	}
	return &CompletionResponse{
		Content:      "",
		Success:      false,
		Provider:     ProviderAllFailed,
		Model:        model,
		Attempts:     len(history),
		TotalTime:    time.Since(start),
		ErrorHistory: history,
	}, nil
}

// CallText is a convenience wrapper around Call that returns only the
// response text, converting a terminal failed response into an error carrying
// the most recent failure message.
func (c *Client) CallText(ctx context.Context, req *CompletionRequest) (string, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		last := "unknown error"
		if n := len(resp.ErrorHistory); n > 0 {
			last = resp.ErrorHistory[n-1].Error
		}
		return "", fmt.Errorf("llm call failed after %d attempts: %s", resp.Attempts, last)
	}
	return resp.Content, nil
}

// Stats returns per-provider success rates and average call times.
func (c *Client) Stats() map[string]ProviderStats {
	return c.stats.Snapshot()
}

// tryProvider runs the retry loop against a single provider with exponential
// backoff and error-context injection. The returned response is never nil;
// on exhaustion it carries Success=false and the locally accumulated errors.
func (c *Client) tryProvider(
	ctx context.Context,
	name string,
	req *CompletionRequest,
	messages []Message,
	model string,
	globalErrors []ErrorRecord,
) *CompletionResponse {
	logger := observability.FromContext(observability.WithProvider(ctx, name))

	provider, err := c.registry.Resolve(ctx, name, nil)
	if err != nil {
		return &CompletionResponse{
			Content:  "",
			Success:  false,
			Provider: name,
			Model:    model,
			ErrorHistory: []ErrorRecord{{
				Provider:  name,
				Attempt:   0,
				Error:     err.Error(),
				ErrorType: errorKind(err),
				Timestamp: time.Now(),
			}},
		}
	}

	wait := c.cfg.InitialWait
	var local []ErrorRecord

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		effective := messages
		if attempt > 0 {
			// Inject recent error context so the LLM can self-correct.
			effective = appendErrorContext(messages, local, globalErrors)
		}

		attemptReq := *req
		attemptReq.Prompt = ""
		attemptReq.Messages = effective
		attemptReq.Model = model

		resp, callErr := provider.Complete(ctx, &attemptReq)

		switch {
		case callErr == nil && resp != nil && resp.Success:
			resp.Attempts = attempt + 1
			resp.ErrorHistory = local
			return resp

		case callErr != nil:
			local = append(local, ErrorRecord{
				Provider:  name,
				Attempt:   attempt + 1,
				Error:     callErr.Error(),
				ErrorType: errorKind(callErr),
				Timestamp: time.Now(),
			})
			logger.Warn("attempt failed",
				observability.Int("attempt", attempt+1),
				observability.Error(callErr))

		default:
			msg := "unknown"
			if resp != nil && len(resp.ErrorHistory) > 0 {
				msg = resp.ErrorHistory[len(resp.ErrorHistory)-1].Error
			}
			local = append(local, ErrorRecord{
				Provider:  name,
				Attempt:   attempt + 1,
				Error:     msg,
				ErrorType: "ProviderFailure",
				Timestamp: time.Now(),
			})
			logger.Warn("provider returned failed response",
				observability.Int("attempt", attempt+1),
				observability.String("error", msg))
		}

		if attempt < c.cfg.MaxRetries-1 {
			backoff := time.Duration(float64(wait) * (1 + c.jitter()))
			if sleepErr := c.sleep(ctx, backoff); sleepErr != nil {
				local = append(local, ErrorRecord{
					Provider:  name,
					Attempt:   attempt + 1,
					Error:     sleepErr.Error(),
					ErrorType: errorKind(sleepErr),
					Timestamp: time.Now(),
				})
				break
			}
			wait = min(wait*2, c.cfg.MaxWait)
		}
	}

	return &CompletionResponse{
		Content:      "",
		Success:      false,
		Provider:     name,
		Model:        model,
		Attempts:     len(local),
		ErrorHistory: local,
	}
}

// finishSuccess stamps cost, stores the response in the cache and publishes
// the completion event.
func (c *Client) finishSuccess(ctx context.Context, req *CompletionRequest, resp *CompletionResponse) {
	logger := observability.FromContext(ctx)

	if c.costCalculator != nil {
		cost, _ := c.costCalculator.Calculate(ctx, resp.Model, resp.Usage)
		resp.Usage.Cost = cost
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, req, resp, 0); err != nil {
			logger.Warn("failed to store response in cache", observability.Error(err))
		}
	}

	c.publish(ctx, "call_completed", map[string]any{
		"provider": resp.Provider,
		"model":    resp.Model,
		"attempts": resp.Attempts,
		"tokens":   resp.Usage.TotalTokens,
	})
}

func (c *Client) publish(ctx context.Context, eventType string, data map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Publish(ctx, eventType, data)
}

// appendErrorContext appends a synthetic user message summarizing the most
// recent failures (at most errorContextWindow, local errors first then the
// carried-over global history, keeping the tail of the concatenation).
func appendErrorContext(original []Message, local, global []ErrorRecord) []Message {
	combined := make([]ErrorRecord, 0, len(local)+len(global))
	combined = append(combined, local...)
	combined = append(combined, global...)
	if len(combined) == 0 {
		return original
	}
	if len(combined) > errorContextWindow {
		combined = combined[len(combined)-errorContextWindow:]
	}

	var b strings.Builder
	b.WriteString("Previous attempts failed with the following errors:\n")
	for i, rec := range combined {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, rec.ErrorType, rec.Error)
	}
	b.WriteString("\nPlease analyse these errors and provide a corrected response.")

	out := make([]Message, 0, len(original)+1)
	out = append(out, original...)
	out = append(out, Message{Role: "user", Content: b.String()})
	return out
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
