package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsBurst(t *testing.T) {
	limiter := NewRateLimiter(1.0, 3)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
}

func TestRateLimiter_CanceledContext(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	ctx, cancel := context.WithCancel(context.Background())

	// Drain the single burst token, then cancel: the next Wait must fail
	// instead of blocking for the ~17 minute refill.
	require.NoError(t, limiter.Wait(ctx))
	cancel()

	err := limiter.Wait(ctx)
	assert.Error(t, err)
}
