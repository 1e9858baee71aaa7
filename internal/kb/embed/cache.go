package embed

import (
	"context"
	"time"

	"opskb/pkg/util"
)

// CachedProvider memoizes single-text embeddings. Query embedding is the hot
// path: the same questions recur across sessions, and skipping the provider
// round trip is the difference between a local map lookup and a model call.
// Batch embedding (ingestion) bypasses the cache; documents are embedded
// once.
type CachedProvider struct {
	inner Provider
	cache *util.LRUCache[string, []float32]
}

// WithCache wraps a provider with an LRU of the given size. Entries expire
// after an hour so a re-deployed embedding model cannot serve stale vectors
// forever.
func WithCache(inner Provider, size int) (*CachedProvider, error) {
	cache, err := util.NewLRU[string, []float32](size, time.Hour)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{inner: inner, cache: cache}, nil
}

func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Put(text, v)
	return v, nil
}

func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *CachedProvider) Dimension() int { return c.inner.Dimension() }

var _ Provider = (*CachedProvider)(nil)
