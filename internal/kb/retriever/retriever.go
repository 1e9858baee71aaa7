// Package retriever answers "which chunks are relevant to this question" by
// searching the vector index and re-validating every hit against the
// relational store before it is allowed into an answer.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"opskb/internal/kb"
	"opskb/internal/kb/vectorstore"
	"opskb/internal/store"
	"opskb/pkg/logger"
)

// maxFallbackResults bounds the low-confidence result set returned when
// nothing clears the similarity floor.
const maxFallbackResults = 3

// Embedder is the single-text slice of the embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkResolver maps vector ids to live chunk rows.
type ChunkResolver interface {
	ResolveVectorIDs(ctx context.Context, vectorIDs []string) (map[string]store.ChunkRef, error)
}

// Retriever runs similarity search with a relevance floor.
type Retriever struct {
	embedder Embedder
	vectors  vectorstore.Store
	resolver ChunkResolver
	floor    float32
	topK     int
	log      *logger.Logger
}

func New(embedder Embedder, vectors vectorstore.Store, resolver ChunkResolver, floor float32, topK int, log *logger.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		resolver: resolver,
		floor:    floor,
		topK:     topK,
		log:      log,
	}
}

// Retrieve returns the evidence set for a question. topK bounds the result
// set per call; zero or negative falls back to the configured default.
// Results below the similarity floor are only returned when nothing clears
// it, flagged so callers can present them as low-confidence.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]kb.Evidence, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", kb.ErrInputRejected)
	}
	if topK <= 0 {
		topK = r.topK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	// Over-fetch: stale hits and the floor both thin the result set after
	// the index search.
	fetch := topK * 2
	if fetch < maxFallbackResults {
		fetch = maxFallbackResults
	}
	hits, err := r.vectors.Search(ctx, vec, fetch)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	refs, err := r.resolver.ResolveVectorIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	evidence := make([]kb.Evidence, 0, len(hits))
	stale := 0
	for _, h := range hits {
		ref, ok := refs[h.ID]
		if !ok {
			stale++
			continue
		}
		evidence = append(evidence, kb.Evidence{
			VectorID:     h.ID,
			DocumentID:   ref.Chunk.DocumentID,
			DocumentName: ref.DocumentName,
			ChunkID:      ref.Chunk.ID,
			ChunkIndex:   ref.Chunk.ChunkIndex,
			Text:         ref.Chunk.Content,
			StartOffset:  ref.Chunk.StartOffset,
			EndOffset:    ref.Chunk.EndOffset,
			Similarity:   h.Score,
		})
	}
	if stale > 0 {
		r.log.WithField("stale_hits", stale).Debug("dropped index entries with no live chunk")
	}
	if len(evidence) == 0 {
		return nil, nil
	}

	sortEvidence(evidence)

	relevant := evidence[:0:0]
	for _, ev := range evidence {
		if ev.Similarity >= r.floor {
			relevant = append(relevant, ev)
		}
	}
	if len(relevant) > 0 {
		if len(relevant) > topK {
			relevant = relevant[:topK]
		}
		return relevant, nil
	}

	// Nothing confident. Surface the closest misses rather than a blank
	// answer so the caller can say "this is the best we have".
	if len(evidence) > maxFallbackResults {
		evidence = evidence[:maxFallbackResults]
	}
	for i := range evidence {
		evidence[i].BelowFloor = true
	}
	return evidence, nil
}

// sortEvidence orders by descending similarity, breaking exact ties by
// ascending chunk index so output is stable run to run.
func sortEvidence(evidence []kb.Evidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Similarity != evidence[j].Similarity {
			return evidence[i].Similarity > evidence[j].Similarity
		}
		return evidence[i].ChunkIndex < evidence[j].ChunkIndex
	})
}
