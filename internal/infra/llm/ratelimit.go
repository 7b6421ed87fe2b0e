package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter implements a token bucket over outbound provider calls.
// Providers enforce their own server-side limits; this keeps the
// coordinator from tripping them in the first place when several
// schedulers share one provider.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a RateLimiter allowing a sustained
// requestsPerSecond rate with up to burst immediate requests.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until a token is available or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// rateLimitedProvider gates every model call on a shared per-provider-type
// token bucket. Read-only surface (CountTokens, ListModels, Health) passes
// through unlimited.
type rateLimitedProvider struct {
	Provider
	limiter *RateLimiter
}

func (p rateLimitedProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return ChatResponse{}, fmt.Errorf("llm: rate limiter wait: %w", err)
	}
	return p.Provider.Chat(ctx, req)
}

func (p rateLimitedProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: rate limiter wait: %w", err)
	}
	return p.Provider.ChatStream(ctx, req)
}

func (p rateLimitedProvider) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return EmbedResponse{}, fmt.Errorf("llm: rate limiter wait: %w", err)
	}
	return p.Provider.Embed(ctx, req)
}
