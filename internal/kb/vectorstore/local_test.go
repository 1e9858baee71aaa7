package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"opskb/pkg/logger"
)

func testLogger() *logger.Logger {
	logger.Init("error")
	return logger.New("vectorstore-test")
}

func newTestLocal(t *testing.T) (*LocalStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	s, err := NewLocal(path, 3, testLogger())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return s, path
}

func TestLocalUpsertAndSearch(t *testing.T) {
	s, _ := newTestLocal(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Record{
		{ID: "a", Vector: []float32{1, 0, 0}, DocumentID: 1, ChunkIndex: 0},
		{ID: "b", Vector: []float32{0, 1, 0}, DocumentID: 1, ChunkIndex: 1},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, DocumentID: 2, ChunkIndex: 0},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "a" {
		t.Errorf("top hit = %s, want a", hits[0].ID)
	}
	if hits[1].ID != "c" {
		t.Errorf("second hit = %s, want c", hits[1].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("hits not ordered by score: %v then %v", hits[0].Score, hits[1].Score)
	}
}

func TestLocalUpsertIsIdempotent(t *testing.T) {
	s, _ := newTestLocal(t)
	ctx := context.Background()

	rec := Record{ID: "a", Vector: []float32{1, 0, 0}, DocumentID: 1}
	for i := 0; i < 3; i++ {
		if err := s.Upsert(ctx, []Record{rec}); err != nil {
			t.Fatalf("Upsert #%d: %v", i, err)
		}
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d after repeated upsert of one id, want 1", n)
	}
}

func TestLocalDimensionMismatchRejected(t *testing.T) {
	s, _ := newTestLocal(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Record{{ID: "a", Vector: []float32{1, 0}}})
	if err == nil {
		t.Fatal("Upsert accepted a 2-dim vector in a 3-dim store")
	}
	if _, err := s.Search(ctx, []float32{1, 0}, 5); err == nil {
		t.Fatal("Search accepted a 2-dim query in a 3-dim store")
	}
}

func TestLocalDeleteByDocument(t *testing.T) {
	s, _ := newTestLocal(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Record{
		{ID: "a", Vector: []float32{1, 0, 0}, DocumentID: 1},
		{ID: "b", Vector: []float32{0, 1, 0}, DocumentID: 1},
		{ID: "c", Vector: []float32{0, 0, 1}, DocumentID: 2},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.DeleteByDocument(ctx, 1); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	n, _ := s.Count(ctx)
	if n != 1 {
		t.Fatalf("count = %d after delete, want 1", n)
	}
	hits, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.DocumentID == 1 {
			t.Errorf("hit %s still references deleted document 1", h.ID)
		}
	}
}

func TestLocalPersistsAcrossReopen(t *testing.T) {
	s, path := newTestLocal(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Record{
		{ID: "a", Vector: []float32{1, 0, 0}, DocumentID: 1, ChunkIndex: 3},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reopened, err := NewLocal(path, 3, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	hits, err := reopened.Search(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" || hits[0].ChunkIndex != 3 {
		t.Fatalf("reopened store lost data: %+v", hits)
	}
}

func TestLocalReopenDimensionMismatch(t *testing.T) {
	s, path := newTestLocal(t)
	if err := s.Upsert(context.Background(), []Record{{ID: "a", Vector: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := NewLocal(path, 5, testLogger()); err == nil {
		t.Fatal("reopening a 3-dim snapshot as 5-dim should fail")
	}
}

func TestLocalTieBreakByChunkIndex(t *testing.T) {
	s, _ := newTestLocal(t)
	ctx := context.Background()

	// identical vectors, identical scores, only chunk index differs
	err := s.Upsert(ctx, []Record{
		{ID: "z", Vector: []float32{1, 0, 0}, DocumentID: 1, ChunkIndex: 5},
		{ID: "a", Vector: []float32{1, 0, 0}, DocumentID: 1, ChunkIndex: 2},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	hits, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].ChunkIndex != 2 || hits[1].ChunkIndex != 5 {
		t.Errorf("equal-score hits not ordered by chunk index: %d then %d", hits[0].ChunkIndex, hits[1].ChunkIndex)
	}
}
