package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"opskb/internal/kb"
	"opskb/pkg/circuitbreaker"
)

type stubClient struct {
	err   error
	calls int
}

func (s *stubClient) Generate(ctx context.Context, messages []Message) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "answer", nil
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubClient{err: errors.New("model down")}
	c := WithBreaker(inner, circuitbreaker.New(3, 1, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Generate(ctx, nil); err == nil {
			t.Fatal("expected failure")
		}
	}
	// circuit now open, inner must not be called again
	before := inner.calls
	_, err := c.Generate(ctx, nil)
	if !errors.Is(err, kb.ErrGenerativeFailed) {
		t.Fatalf("err = %v, want ErrGenerativeFailed", err)
	}
	if inner.calls != before {
		t.Error("open circuit still forwarded the call")
	}
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	inner := &stubClient{err: errors.New("model down")}
	c := WithBreaker(inner, circuitbreaker.New(1, 1, 10*time.Millisecond))
	ctx := context.Background()

	if _, err := c.Generate(ctx, nil); err == nil {
		t.Fatal("expected failure")
	}
	time.Sleep(20 * time.Millisecond)

	inner.err = nil
	text, err := c.Generate(ctx, nil)
	if err != nil || text != "answer" {
		t.Fatalf("probe after cooldown failed: %q, %v", text, err)
	}
	// closed again
	if _, err := c.Generate(ctx, nil); err != nil {
		t.Fatalf("recovered circuit refused a call: %v", err)
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	inner := &stubClient{err: context.Canceled}
	c := WithBreaker(inner, circuitbreaker.New(1, 1, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, _ = c.Generate(ctx, nil)
	}

	// cancelled calls must not have tripped the breaker
	inner.err = nil
	if _, err := c.Generate(context.Background(), nil); err != nil {
		t.Fatalf("breaker tripped by cancellations: %v", err)
	}
}
