package retriever

import (
	"context"
	"errors"
	"testing"

	"opskb/internal/kb"
	"opskb/internal/kb/vectorstore"
	"opskb/internal/models"
	"opskb/internal/store"
	"opskb/pkg/logger"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeVectors struct {
	hits []vectorstore.Hit
	err  error
}

func (f *fakeVectors) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func (f *fakeVectors) Upsert(ctx context.Context, records []vectorstore.Record) error { return nil }
func (f *fakeVectors) DeleteByDocument(ctx context.Context, documentID uint) error    { return nil }
func (f *fakeVectors) Count(ctx context.Context) (int64, error)                       { return 0, nil }
func (f *fakeVectors) Name() string                                                   { return "fake" }
func (f *fakeVectors) Close() error                                                   { return nil }

type fakeResolver struct {
	refs map[string]store.ChunkRef
	err  error
}

func (f *fakeResolver) ResolveVectorIDs(ctx context.Context, ids []string) (map[string]store.ChunkRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]store.ChunkRef{}
	for _, id := range ids {
		if ref, ok := f.refs[id]; ok {
			out[id] = ref
		}
	}
	return out, nil
}

func ref(chunkID uint, docID uint, index int, content string) store.ChunkRef {
	return store.ChunkRef{
		Chunk: models.DocumentChunk{
			ID:         chunkID,
			DocumentID: docID,
			ChunkIndex: index,
			Content:    content,
		},
		DocumentName: "guide.pdf",
	}
}

func newTestRetriever(vectors *fakeVectors, resolver *fakeResolver) *Retriever {
	logger.Init("error")
	return New(&fakeEmbedder{vec: []float32{1, 0, 0}}, vectors, resolver, 0.6, 5, logger.New("retriever-test"))
}

func TestRetrieveEmptyQueryRejected(t *testing.T) {
	r := newTestRetriever(&fakeVectors{}, &fakeResolver{})
	_, err := r.Retrieve(context.Background(), "   \n ", 0)
	if !errors.Is(err, kb.ErrInputRejected) {
		t.Fatalf("err = %v, want ErrInputRejected", err)
	}
}

func TestRetrieveEmbeddingFailurePropagates(t *testing.T) {
	logger.Init("error")
	r := New(&fakeEmbedder{err: kb.ErrEmbeddingUnavailable}, &fakeVectors{}, &fakeResolver{}, 0.6, 5, logger.New("retriever-test"))
	_, err := r.Retrieve(context.Background(), "how do I rotate keys", 0)
	if !errors.Is(err, kb.ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestRetrieveFloorFilter(t *testing.T) {
	vectors := &fakeVectors{hits: []vectorstore.Hit{
		{ID: "a", Score: 0.91, ChunkIndex: 0},
		{ID: "b", Score: 0.72, ChunkIndex: 1},
		{ID: "c", Score: 0.40, ChunkIndex: 2},
	}}
	resolver := &fakeResolver{refs: map[string]store.ChunkRef{
		"a": ref(1, 1, 0, "rotate keys with the admin cli"),
		"b": ref(2, 1, 1, "the audit log records rotations"),
		"c": ref(3, 1, 2, "unrelated content"),
	}}
	r := newTestRetriever(vectors, resolver)

	evidence, err := r.Retrieve(context.Background(), "how do I rotate keys", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(evidence) != 2 {
		t.Fatalf("got %d results, want 2 above the floor", len(evidence))
	}
	for _, ev := range evidence {
		if ev.BelowFloor {
			t.Errorf("above-floor result %s flagged BelowFloor", ev.VectorID)
		}
		if ev.Similarity < 0.6 {
			t.Errorf("result %s below floor leaked through", ev.VectorID)
		}
	}
	if evidence[0].VectorID != "a" || evidence[1].VectorID != "b" {
		t.Errorf("wrong order: %s, %s", evidence[0].VectorID, evidence[1].VectorID)
	}
}

func TestRetrieveBelowFloorFallback(t *testing.T) {
	vectors := &fakeVectors{hits: []vectorstore.Hit{
		{ID: "a", Score: 0.52},
		{ID: "b", Score: 0.47},
		{ID: "c", Score: 0.41},
		{ID: "d", Score: 0.33},
	}}
	resolver := &fakeResolver{refs: map[string]store.ChunkRef{
		"a": ref(1, 1, 0, "a"), "b": ref(2, 1, 1, "b"),
		"c": ref(3, 1, 2, "c"), "d": ref(4, 1, 3, "d"),
	}}
	r := newTestRetriever(vectors, resolver)

	evidence, err := r.Retrieve(context.Background(), "something unrelated", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(evidence) != maxFallbackResults {
		t.Fatalf("got %d fallback results, want %d", len(evidence), maxFallbackResults)
	}
	for _, ev := range evidence {
		if !ev.BelowFloor {
			t.Errorf("fallback result %s not flagged BelowFloor", ev.VectorID)
		}
	}
	if evidence[0].VectorID != "a" {
		t.Errorf("fallback not ordered by similarity, first = %s", evidence[0].VectorID)
	}
}

func TestRetrieveStaleHitsDropped(t *testing.T) {
	vectors := &fakeVectors{hits: []vectorstore.Hit{
		{ID: "live", Score: 0.9},
		{ID: "ghost", Score: 0.95}, // highest score but no chunk row
	}}
	resolver := &fakeResolver{refs: map[string]store.ChunkRef{
		"live": ref(1, 1, 0, "live chunk"),
	}}
	r := newTestRetriever(vectors, resolver)

	evidence, err := r.Retrieve(context.Background(), "query", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(evidence) != 1 || evidence[0].VectorID != "live" {
		t.Fatalf("stale result surfaced: %+v", evidence)
	}
}

func TestRetrieveNoHits(t *testing.T) {
	r := newTestRetriever(&fakeVectors{}, &fakeResolver{})
	evidence, err := r.Retrieve(context.Background(), "anything", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(evidence) != 0 {
		t.Fatalf("got %d results from an empty index", len(evidence))
	}
}

func TestRetrievePerCallTopK(t *testing.T) {
	vectors := &fakeVectors{hits: []vectorstore.Hit{
		{ID: "a", Score: 0.95},
		{ID: "b", Score: 0.90},
		{ID: "c", Score: 0.85},
		{ID: "d", Score: 0.80},
	}}
	resolver := &fakeResolver{refs: map[string]store.ChunkRef{
		"a": ref(1, 1, 0, "a"), "b": ref(2, 1, 1, "b"),
		"c": ref(3, 1, 2, "c"), "d": ref(4, 1, 3, "d"),
	}}
	r := newTestRetriever(vectors, resolver)

	evidence, err := r.Retrieve(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(evidence) != 2 {
		t.Fatalf("topK 2 returned %d results", len(evidence))
	}
	if evidence[0].VectorID != "a" || evidence[1].VectorID != "b" {
		t.Errorf("wrong order: %s, %s", evidence[0].VectorID, evidence[1].VectorID)
	}

	// zero falls back to the configured default of 5
	evidence, err = r.Retrieve(context.Background(), "query", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(evidence) != 4 {
		t.Fatalf("default topK returned %d results, want all 4", len(evidence))
	}
}

func TestRetrieveTieBreakByChunkIndex(t *testing.T) {
	vectors := &fakeVectors{hits: []vectorstore.Hit{
		{ID: "later", Score: 0.8},
		{ID: "earlier", Score: 0.8},
	}}
	resolver := &fakeResolver{refs: map[string]store.ChunkRef{
		"later":   ref(2, 1, 7, "later chunk"),
		"earlier": ref(1, 1, 2, "earlier chunk"),
	}}
	r := newTestRetriever(vectors, resolver)

	evidence, err := r.Retrieve(context.Background(), "query", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(evidence) != 2 {
		t.Fatalf("got %d results, want 2", len(evidence))
	}
	if evidence[0].ChunkIndex != 2 || evidence[1].ChunkIndex != 7 {
		t.Errorf("tie not broken by chunk index: %d then %d", evidence[0].ChunkIndex, evidence[1].ChunkIndex)
	}
}
