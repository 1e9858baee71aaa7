package embed

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"opskb/internal/kb"
)

// OpenAIProvider generates embeddings through an OpenAI-compatible API.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
}

// NewOpenAIProvider creates a client for the given model. baseURL may point
// at any OpenAI-compatible endpoint; empty keeps the default.
func NewOpenAIProvider(model, apiKey, baseURL string, dimension, batchSize int) (*OpenAIProvider, error) {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(cfg)
	return &OpenAIProvider{
		client:    client,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
	}, nil
}

// Embed generates the embedding for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts in bounded batches.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, p.batchSize) {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(p.model),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: create embeddings: %v", kb.ErrEmbeddingUnavailable, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
				kb.ErrEmbeddingUnavailable, len(resp.Data), len(batch))
		}
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}

// Dimension reports the configured model dimensionality.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

var _ Provider = (*OpenAIProvider)(nil)
