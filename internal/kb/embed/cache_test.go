package embed

import (
	"context"
	"errors"
	"testing"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(len(text)), 0, 0}, nil
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *countingProvider) Dimension() int { return 3 }

func TestCachedEmbedHitsOnce(t *testing.T) {
	inner := &countingProvider{}
	c, err := WithCache(inner, 8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if _, err := c.Embed(context.Background(), "same question"); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
}

func TestCachedEmbedErrorNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	c, _ := WithCache(inner, 8)

	for i := 0; i < 2; i++ {
		if _, err := c.Embed(context.Background(), "q"); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("errors must not be cached, calls = %d", inner.calls)
	}
}

func TestCachedEvictsLRU(t *testing.T) {
	inner := &countingProvider{}
	c, _ := WithCache(inner, 2)

	texts := []string{"a", "bb", "ccc"}
	for _, s := range texts {
		if _, err := c.Embed(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}
	// "a" was evicted, re-embedding it costs a call
	before := inner.calls
	if _, err := c.Embed(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != before+1 {
		t.Error("evicted entry served from cache")
	}
}

func TestBatchBypassesCache(t *testing.T) {
	inner := &countingProvider{}
	c, _ := WithCache(inner, 8)

	if _, err := c.EmbedBatch(context.Background(), []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3 (batch does not populate the cache)", inner.calls)
	}
}
