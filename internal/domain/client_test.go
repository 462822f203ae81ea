package domain_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/routing"
)

// mockProvider is a scriptable Provider for testing.
type mockProvider struct {
	name         string
	completeFunc func(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
	calls        int
	requests     []*domain.CompletionRequest
}

func (m *mockProvider) Complete(
	ctx context.Context,
	req *domain.CompletionRequest,
) (*domain.CompletionResponse, error) {
	m.calls++
	m.requests = append(m.requests, req)
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return &domain.CompletionResponse{
		ID:       "mock-id",
		Content:  "ok",
		Success:  true,
		Provider: m.name,
		Model:    req.Model,
		Usage: domain.Usage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		FinishTime: time.Now(),
	}, nil
}

func (m *mockProvider) ListModels(_ context.Context) []string {
	return []string{"mock-model"}
}

func (m *mockProvider) Name() string {
	return m.name
}

// alwaysFail returns a provider whose every attempt raises an error.
func alwaysFail(name, msg string) *mockProvider {
	return &mockProvider{
		name: name,
		completeFunc: func(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
			return nil, errors.New(msg)
		},
	}
}

// failUntil returns a provider that fails the first n attempts, then succeeds.
func failUntil(name string, n int) *mockProvider {
	p := &mockProvider{name: name}
	p.completeFunc = func(_ context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
		if p.calls <= n {
			return nil, errors.New("transient failure")
		}
		return &domain.CompletionResponse{
			Content:  "recovered",
			Success:  true,
			Provider: name,
			Model:    req.Model,
		}, nil
	}
	return p
}

// mockRegistry resolves pre-built provider instances by name.
type mockRegistry struct {
	providers  map[string]domain.Provider
	resolveErr map[string]error
}

func newMockRegistry(providers ...domain.Provider) *mockRegistry {
	m := &mockRegistry{
		providers:  make(map[string]domain.Provider),
		resolveErr: make(map[string]error),
	}
	for _, p := range providers {
		m.providers[p.Name()] = p
	}
	return m
}

func (m *mockRegistry) Register(_ string, _ domain.ProviderFactory) {}

func (m *mockRegistry) Resolve(_ context.Context, name string, _ domain.Settings) (domain.Provider, error) {
	if err, ok := m.resolveErr[name]; ok {
		return nil, err
	}
	p, ok := m.providers[name]
	if !ok {
		return nil, &domain.UnknownProviderError{Name: name, Available: m.List(context.Background())}
	}
	return p, nil
}

func (m *mockRegistry) List(_ context.Context) []string {
	names := make([]string, 0, len(m.providers)+len(m.resolveErr))
	for name := range m.providers {
		names = append(names, name)
	}
	for name := range m.resolveErr {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newTestClient(reg domain.ProviderRegistry, primary string, fallbacks []string, maxRetries int) *domain.Client {
	return domain.NewClient(
		reg,
		routing.NewFallbackRouter(primary, fallbacks),
		nil, nil, nil,
		domain.ClientConfig{
			MaxRetries:   maxRetries,
			InitialWait:  time.Millisecond,
			MaxWait:      4 * time.Millisecond,
			DefaultModel: "test-model",
		},
	)
}

func TestClient_Call_Success(t *testing.T) {
	ctx := context.Background()
	ok := &mockProvider{name: "ok"}
	client := newTestClient(newMockRegistry(ok), "ok", nil, 3)

	resp, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})

	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "ok", resp.Provider)
	require.Equal(t, 1, resp.Attempts)
	require.Empty(t, resp.ErrorHistory)
	require.Equal(t, 1, ok.calls)
	require.Greater(t, resp.TotalTime, time.Duration(0))
}

func TestClient_Call_AllRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	bad := alwaysFail("bad", "connection refused")
	client := newTestClient(newMockRegistry(bad), "bad", nil, 3)

	resp, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})

	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, domain.ProviderAllFailed, resp.Provider)
	require.Equal(t, 3, resp.Attempts)
	require.Len(t, resp.ErrorHistory, 3)

	for i, rec := range resp.ErrorHistory {
		require.Equal(t, "bad", rec.Provider)
		require.Equal(t, i+1, rec.Attempt)
		require.Equal(t, "connection refused", rec.Error)
		require.False(t, rec.Timestamp.IsZero())
	}
}

func TestClient_Call_RecoversWithinRetryBudget(t *testing.T) {
	ctx := context.Background()
	flaky := failUntil("flaky", 2)
	client := newTestClient(newMockRegistry(flaky), "flaky", nil, 5)

	resp, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})

	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "recovered", resp.Content)
	require.Equal(t, 3, resp.Attempts)
	require.Len(t, resp.ErrorHistory, 2)
}

func TestClient_Call_FailoverToFallback(t *testing.T) {
	ctx := context.Background()
	bad := alwaysFail("bad", "primary down")
	ok := &mockProvider{name: "ok"}
	client := newTestClient(newMockRegistry(bad, ok), "bad", []string{"ok"}, 2)

	resp, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})

	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "ok", resp.Provider)
	require.Equal(t, 1, resp.Attempts)

	// Primary's failed attempts stay in history, before any fallback errors.
	require.Len(t, resp.ErrorHistory, 2)
	require.Equal(t, "bad", resp.ErrorHistory[0].Provider)
	require.Equal(t, "bad", resp.ErrorHistory[1].Provider)
}

func TestClient_Call_SkipsUnregisteredFallbacks(t *testing.T) {
	ctx := context.Background()
	bad := alwaysFail("bad", "down")
	ok := &mockProvider{name: "ok"}
	client := newTestClient(newMockRegistry(bad, ok), "bad", []string{"ghost", "ok"}, 1)

	resp, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})

	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "ok", resp.Provider)

	// The unregistered name leaves no trace in the error history.
	for _, rec := range resp.ErrorHistory {
		require.NotEqual(t, "ghost", rec.Provider)
	}
}

func TestClient_Call_ProviderOverride(t *testing.T) {
	ctx := context.Background()
	a := &mockProvider{name: "a"}
	b := &mockProvider{name: "b"}
	client := newTestClient(newMockRegistry(a, b), "a", []string{"b"}, 1)

	resp, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello", Provider: "b"})

	require.NoError(t, err)
	require.Equal(t, "b", resp.Provider)
	require.Equal(t, 0, a.calls)
	require.Equal(t, 1, b.calls)
}

func TestClient_Call_ErrorContextInjection(t *testing.T) {
	t.Run("first attempt request is unmodified", func(t *testing.T) {
		ctx := context.Background()
		flaky := failUntil("flaky", 1)
		client := newTestClient(newMockRegistry(flaky), "flaky", nil, 3)

		_, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})
		require.NoError(t, err)

		require.Len(t, flaky.requests, 2)
		first := flaky.requests[0]
		require.Len(t, first.Messages, 1)
		require.Equal(t, "user", first.Messages[0].Role)
		require.Equal(t, "hello", first.Messages[0].Content)
	})

	t.Run("retries append a self-correction message", func(t *testing.T) {
		ctx := context.Background()
		flaky := failUntil("flaky", 1)
		client := newTestClient(newMockRegistry(flaky), "flaky", nil, 3)

		_, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})
		require.NoError(t, err)

		retry := flaky.requests[1]
		require.Len(t, retry.Messages, 2)
		injected := retry.Messages[1]
		require.Equal(t, "user", injected.Role)
		require.Contains(t, injected.Content, "Previous attempts failed")
		require.Contains(t, injected.Content, "transient failure")
		require.Contains(t, injected.Content, "corrected response")
	})

	t.Run("at most three recent errors are injected", func(t *testing.T) {
		ctx := context.Background()
		flaky := failUntil("flaky", 5)
		client := newTestClient(newMockRegistry(flaky), "flaky", nil, 6)

		_, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})
		require.NoError(t, err)

		last := flaky.requests[5]
		injected := last.Messages[len(last.Messages)-1].Content
		require.Contains(t, injected, "3. ")
		require.NotContains(t, injected, "4. ")
	})
}

func TestClient_Call_MissingInput(t *testing.T) {
	ctx := context.Background()
	ok := &mockProvider{name: "ok"}
	client := newTestClient(newMockRegistry(ok), "ok", nil, 3)

	resp, err := client.Call(ctx, &domain.CompletionRequest{})

	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrMissingInput)
	require.Nil(t, resp)
	require.Equal(t, 0, ok.calls)
	require.Empty(t, client.Stats())
}

func TestClient_Call_NilRequest(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(newMockRegistry(), "ok", nil, 3)

	_, err := client.Call(ctx, nil)
	require.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestClient_Call_ResolutionFailureAdvances(t *testing.T) {
	ctx := context.Background()
	ok := &mockProvider{name: "ok"}
	reg := newMockRegistry(ok)
	reg.resolveErr["broken"] = errors.New("bad credentials in settings")
	client := newTestClient(reg, "broken", []string{"ok"}, 3)

	resp, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})

	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "ok", resp.Provider)

	require.Len(t, resp.ErrorHistory, 1)
	require.Equal(t, "broken", resp.ErrorHistory[0].Provider)
	require.Equal(t, 0, resp.ErrorHistory[0].Attempt)
	require.Contains(t, resp.ErrorHistory[0].Error, "bad credentials")

	stats := client.Stats()
	require.Equal(t, 1, stats["broken"].Failures)
}

func TestClient_Call_DeadlineBoundsRetries(t *testing.T) {
	ctx := context.Background()
	bad := alwaysFail("bad", "down")
	alsoBad := alwaysFail("also-bad", "down too")
	client := domain.NewClient(
		newMockRegistry(bad, alsoBad),
		routing.NewFallbackRouter("bad", []string{"also-bad"}),
		nil, nil, nil,
		domain.ClientConfig{
			MaxRetries:  5,
			InitialWait: 50 * time.Millisecond,
			MaxWait:     time.Second,
			CallTimeout: 10 * time.Millisecond,
		},
	)

	start := time.Now()
	resp, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})

	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, domain.ProviderAllFailed, resp.Provider)
	require.Less(t, time.Since(start), 2*time.Second)

	var sawDeadline bool
	for _, rec := range resp.ErrorHistory {
		if rec.ErrorType == "DeadlineExceeded" {
			sawDeadline = true
		}
	}
	require.True(t, sawDeadline)
}

func TestClient_Stats(t *testing.T) {
	ctx := context.Background()
	ok := &mockProvider{name: "ok"}
	client := newTestClient(newMockRegistry(ok), "ok", nil, 3)

	for range 5 {
		_, err := client.Call(ctx, &domain.CompletionRequest{Prompt: "hello"})
		require.NoError(t, err)
	}

	stats := client.Stats()
	require.Len(t, stats, 1)
	require.Equal(t, 5, stats["ok"].Successes)
	require.Equal(t, 0, stats["ok"].Failures)
	require.InDelta(t, 1.0, stats["ok"].SuccessRate, 0.0001)
	require.Greater(t, stats["ok"].AvgTime, time.Duration(0))
}

func TestClient_CallText(t *testing.T) {
	t.Run("returns content on success", func(t *testing.T) {
		ctx := context.Background()
		ok := &mockProvider{name: "ok"}
		client := newTestClient(newMockRegistry(ok), "ok", nil, 3)

		content, err := client.CallText(ctx, &domain.CompletionRequest{Prompt: "hello"})
		require.NoError(t, err)
		require.Equal(t, "ok", content)
	})

	t.Run("converts terminal failure into an error", func(t *testing.T) {
		ctx := context.Background()
		bad := alwaysFail("bad", "quota exceeded")
		client := newTestClient(newMockRegistry(bad), "bad", nil, 2)

		_, err := client.CallText(ctx, &domain.CompletionRequest{Prompt: "hello"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "quota exceeded")
		require.Contains(t, err.Error(), "failed after 2 attempts")
	})
}

// recordingCache is an in-memory ResponseCache for testing.
type recordingCache struct {
	entries map[string]*domain.CompletionResponse
	sets    int
}

func cacheKeyOf(req *domain.CompletionRequest) string {
	parts := make([]string, 0, len(req.Messages)+1)
	parts = append(parts, req.Model, req.Prompt)
	for _, m := range req.Messages {
		parts = append(parts, m.Role+":"+m.Content)
	}
	return strings.Join(parts, "|")
}

func (c *recordingCache) Get(_ context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if resp, ok := c.entries[cacheKeyOf(req)]; ok {
		return resp, nil
	}
	return nil, domain.ErrCacheMiss
}

func (c *recordingCache) Set(
	_ context.Context,
	req *domain.CompletionRequest,
	resp *domain.CompletionResponse,
	_ time.Duration,
) error {
	c.sets++
	c.entries[cacheKeyOf(req)] = resp
	return nil
}

func TestClient_Call_CacheHitSkipsProviders(t *testing.T) {
	ctx := context.Background()
	ok := &mockProvider{name: "ok"}
	cache := &recordingCache{entries: make(map[string]*domain.CompletionResponse)}
	client := domain.NewClient(
		newMockRegistry(ok),
		routing.NewFallbackRouter("ok", nil),
		nil, cache, nil,
		domain.ClientConfig{MaxRetries: 1, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	)

	req := &domain.CompletionRequest{Prompt: "hello", Model: "m"}

	first, err := client.Call(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, ok.calls)
	require.Equal(t, 1, cache.sets)

	second, err := client.Call(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, ok.calls) // no second provider invocation
	require.Equal(t, first.Content, second.Content)
}
