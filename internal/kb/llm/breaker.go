package llm

import (
	"context"
	"fmt"

	"opskb/internal/kb"
	"opskb/pkg/circuitbreaker"
)

// BreakerClient wraps a Client with a circuit breaker. When the model has
// been failing consistently, calls short-circuit immediately instead of
// burning the full retry-and-timeout budget per request; the synthesizer
// then drops straight to its extractive fallback.
type BreakerClient struct {
	inner   Client
	breaker *circuitbreaker.Breaker
}

func WithBreaker(inner Client, breaker *circuitbreaker.Breaker) *BreakerClient {
	return &BreakerClient{inner: inner, breaker: breaker}
}

func (b *BreakerClient) Generate(ctx context.Context, messages []Message) (string, error) {
	if !b.breaker.Allow() {
		return "", fmt.Errorf("%w: %v", kb.ErrGenerativeFailed, circuitbreaker.ErrOpen)
	}
	text, err := b.inner.Generate(ctx, messages)
	// Cancellation says nothing about the model's health.
	if ctx.Err() == nil {
		b.breaker.Record(err)
	}
	return text, err
}

var _ Client = (*BreakerClient)(nil)
