// Package embed maps text to fixed-dimension dense vectors through a
// configurable provider. Providers are stateless and deterministic for a
// fixed model version.
package embed

import (
	"context"
	"fmt"

	"opskb/internal/config"
)

// Provider is the text embedding capability used by the pipeline.
type Provider interface {
	// Embed generates the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates vectors for a batch of texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension reports the fixed output dimensionality of the configured
	// model. It must match the vector collection's dimensionality.
	Dimension() int
}

// New creates a Provider for the configured vendor.
func New(cfg *config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(cfg.Model, cfg.BaseURL, cfg.Dimension, cfg.BatchSize)
	case "openai":
		return NewOpenAIProvider(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.Dimension, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}

// batches splits texts into slices of at most batchSize, preserving order.
func batches(texts []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = 16
	}
	var out [][]string
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}
