package anthropic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		usage TokenUsage
		model string
		want  float64
	}{
		{
			name:  "unknown model returns zero",
			usage: TokenUsage{InputTokens: 1000, OutputTokens: 1000},
			model: "not-a-model",
			want:  0,
		},
		{
			name:  "haiku input and output",
			usage: TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			model: "claude-haiku-4-5-20251001",
			want:  4.80,
		},
		{
			name: "cache write costs 1.25x input rate",
			usage: TokenUsage{
				CacheCreationInputTokens: 1_000_000,
			},
			model: "claude-haiku-4-5-20251001",
			want:  1.00,
		},
		{
			name: "cache read costs 0.1x input rate",
			usage: TokenUsage{
				CacheReadInputTokens: 1_000_000,
			},
			model: "claude-haiku-4-5-20251001",
			want:  0.08,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.usage.EstimateCost(tt.model), 1e-9)
		})
	}
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("you are a sommelier")
	require.Len(t, blocks, 1)
	assert.Equal(t, "you are a sommelier", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "5m", blocks[0].CacheControl.TTL)
}

// countingClient records CreateMessage calls for limiter tests.
type countingClient struct {
	calls int
}

func (c *countingClient) CreateMessage(_ context.Context, _ MessageRequest) (*MessageResponse, error) {
	c.calls++
	return &MessageResponse{ID: "msg_test"}, nil
}

func TestNewRateLimitedClient(t *testing.T) {
	t.Run("non-positive rate returns inner client", func(t *testing.T) {
		inner := &countingClient{}
		assert.Same(t, Client(inner), NewRateLimitedClient(inner, 0, 1))
	})

	t.Run("delegates to inner client", func(t *testing.T) {
		inner := &countingClient{}
		limited := NewRateLimitedClient(inner, 100, 1)

		resp, err := limited.CreateMessage(context.Background(), MessageRequest{})
		require.NoError(t, err)
		assert.Equal(t, "msg_test", resp.ID)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("canceled context aborts the wait", func(t *testing.T) {
		inner := &countingClient{}
		limited := NewRateLimitedClient(inner, 0.001, 1)

		// Drain the initial burst token.
		_, err := limited.CreateMessage(context.Background(), MessageRequest{})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = limited.CreateMessage(ctx, MessageRequest{})
		assert.Error(t, err)
		assert.Equal(t, 1, inner.calls)
	})
}
