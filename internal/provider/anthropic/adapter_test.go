package anthropic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/provider/anthropic"
)

func TestNewProvider(t *testing.T) {
	t.Run("requires an API key", func(t *testing.T) {
		_, err := anthropic.NewProvider(anthropic.Config{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "API key is required")
	})

	t.Run("constructs with key", func(t *testing.T) {
		provider, err := anthropic.NewProvider(anthropic.Config{
			APIKey:       "test-key",
			DefaultModel: "claude-sonnet-4-5",
		})
		require.NoError(t, err)
		require.Equal(t, "anthropic", provider.Name())
	})
}

func TestListModels(t *testing.T) {
	provider, err := anthropic.NewProvider(anthropic.Config{
		APIKey:       "test-key",
		DefaultModel: "claude-sonnet-4-5",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"claude-sonnet-4-5"}, provider.ListModels(context.Background()))
}

func TestComplete_NilRequest(t *testing.T) {
	provider, err := anthropic.NewProvider(anthropic.Config{APIKey: "test-key"})
	require.NoError(t, err)

	resp, completeErr := provider.Complete(context.Background(), nil)
	require.Error(t, completeErr)
	require.Nil(t, resp)
}

func TestComplete_APIFailureIsEncoded(t *testing.T) {
	provider, err := anthropic.NewProvider(anthropic.Config{
		APIKey:       "test-key",
		BaseURL:      "http://127.0.0.1:1", // nothing listens here
		Timeout:      1,
		DefaultModel: "claude-sonnet-4-5",
	})
	require.NoError(t, err)

	resp, completeErr := provider.Complete(context.Background(), &domain.CompletionRequest{
		Prompt: "hello",
	})

	require.NoError(t, completeErr)
	require.NotNil(t, resp)
	require.False(t, resp.Success)
	require.Equal(t, "anthropic", resp.Provider)
	require.Len(t, resp.ErrorHistory, 1)
	require.Equal(t, "APIError", resp.ErrorHistory[0].ErrorType)
}
