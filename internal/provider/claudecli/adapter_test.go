package claudecli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/howl/internal/domain"
)

func TestNewProvider_Defaults(t *testing.T) {
	provider := NewProvider(Config{})

	require.Equal(t, "claude_cli", provider.Name())
	require.Equal(t, "claude", provider.path)
	require.Equal(t, 5*time.Minute, provider.timeout)
}

func TestComplete_MissingBinaryIsEncoded(t *testing.T) {
	provider := NewProvider(Config{
		Path:    "definitely-not-a-real-binary-4f2a",
		Timeout: time.Second,
	})

	resp, err := provider.Complete(context.Background(), &domain.CompletionRequest{
		Prompt: "hello",
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	require.False(t, resp.Success)
	require.Equal(t, "claude_cli", resp.Provider)
	require.Len(t, resp.ErrorHistory, 1)
	require.Equal(t, "NotFoundError", resp.ErrorHistory[0].ErrorType)
	require.Contains(t, resp.ErrorHistory[0].Error, "not found")
}

func TestComplete_NilRequest(t *testing.T) {
	provider := NewProvider(Config{})

	resp, err := provider.Complete(context.Background(), nil)
	require.Error(t, err)
	require.Nil(t, resp)
}

func TestBuildPrompt(t *testing.T) {
	provider := NewProvider(Config{})

	t.Run("flattens a conversation", func(t *testing.T) {
		prompt := provider.buildPrompt(&domain.CompletionRequest{
			Messages: []domain.Message{
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hello"},
				{Role: "user", Content: "bye"},
			},
		})
		require.Equal(t, "user: hi\nassistant: hello\nuser: bye", prompt)
	})

	t.Run("prepends the system prompt", func(t *testing.T) {
		prompt := provider.buildPrompt(&domain.CompletionRequest{
			Prompt: "hi",
			System: "be brief",
		})
		require.Equal(t, "System: be brief\n\nuser: hi", prompt)
	})
}

func TestListModels(t *testing.T) {
	provider := NewProvider(Config{})
	require.Equal(t, []string{"claude-cli"}, provider.ListModels(context.Background()))
}
