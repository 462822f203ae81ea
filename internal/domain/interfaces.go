package domain

import (
	"context"
	"time"
)

// Provider represents any LLM provider.
//
// Complete is synchronous from the caller's perspective and must return a
// CompletionResponse with Success=false for expected failure modes instead of
// an error. A returned error is reserved for programmer/configuration
// mistakes; the Client treats it exactly like a failed response when deciding
// whether to retry.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// ListModels returns the models this provider exposes.
	// Providers without a model listing return an empty slice.
	ListModels(ctx context.Context) []string

	// Name returns the provider identifier.
	Name() string
}

// Settings are free-form construction arguments passed to a ProviderFactory.
type Settings map[string]any

// ProviderFactory constructs a Provider. A factory may build a fresh instance
// per call or hand out a cached singleton; callers must not assume which.
type ProviderFactory func(settings Settings) (Provider, error)

// ProviderRegistry maps logical provider names to factories.
type ProviderRegistry interface {
	// Register stores a factory under name, overwriting any previous entry.
	Register(name string, factory ProviderFactory)

	// Resolve constructs the provider registered under name.
	// An unregistered name yields an *UnknownProviderError.
	Resolve(ctx context.Context, name string, settings Settings) (Provider, error)

	// List returns all registered names in sorted order.
	List(ctx context.Context) []string
}

// Router determines the candidate provider order for a request.
type Router interface {
	// Candidates returns the providers to try, effective primary first.
	Candidates(ctx context.Context, req *RouteRequest) []string
}

// RouteRequest contains criteria for provider selection.
type RouteRequest struct {
	// Provider, when set, replaces the configured primary for this call.
	Provider string
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]any)
}

// ResponseCache stores completed responses keyed by request content.
type ResponseCache interface {
	// Get retrieves a cached response, or ErrCacheMiss.
	Get(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Set stores a response for the given request.
	Set(ctx context.Context, req *CompletionRequest, resp *CompletionResponse, ttl time.Duration) error
}
