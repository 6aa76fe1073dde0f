package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterSpacesCalls(t *testing.T) {
	limiter := NewRateLimiter(50)
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.WaitTurn(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimiterHonorsCancellation(t *testing.T) {
	limiter := NewRateLimiter(1)
	require.NoError(t, limiter.WaitTurn(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := limiter.WaitTurn(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "cancelled wait must return promptly")
}
