package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"

	"opskb/internal/kb"
)

// OllamaProvider generates embeddings through a local or remote Ollama
// instance.
type OllamaProvider struct {
	client    *ollama.Client
	model     string
	dimension int
	batchSize int
}

// NewOllamaProvider creates a client for the given model. baseURL defaults
// to the local Ollama endpoint.
func NewOllamaProvider(model, baseURL string, dimension, batchSize int) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{
		Timeout: 120 * time.Second,
	}
	client := ollama.NewClient(parsedURL, hc)

	return &OllamaProvider{
		client:    client,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
	}, nil
}

// Embed generates the embedding for a single text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts, splitting the request into
// bounded batches.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, p.batchSize) {
		resp, err := p.client.Embed(ctx, &ollama.EmbedRequest{
			Model: p.model,
			Input: batch,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: ollama embed: %v", kb.ErrEmbeddingUnavailable, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs",
				kb.ErrEmbeddingUnavailable, len(resp.Embeddings), len(batch))
		}
		out = append(out, resp.Embeddings...)
	}
	return out, nil
}

// Dimension reports the configured model dimensionality.
func (p *OllamaProvider) Dimension() int { return p.dimension }

var _ Provider = (*OllamaProvider)(nil)
