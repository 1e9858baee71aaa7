package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"opskb/pkg/logger"
)

// LocalStore is the embedded backend: an in-memory index with brute-force
// cosine search, snapshotted to a JSON file after every mutation. Capacity
// and latency are bounded by memory, which is acceptable for single-node
// deployments and as the degraded fallback when Milvus is unreachable.
type LocalStore struct {
	mu      sync.RWMutex
	path    string
	dim     int
	records map[string]Record
	log     *logger.Logger
}

type localSnapshot struct {
	Dim     int      `json:"dim"`
	Records []Record `json:"records"`
}

// NewLocal opens (or creates) the embedded store backed by the snapshot file
// at path. An existing snapshot with a different vector dimensionality is a
// configuration error, not something to silently re-index.
func NewLocal(path string, dim int, log *logger.Logger) (*LocalStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectorstore: invalid dimension %d", dim)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("vectorstore: create data dir: %w", err)
	}

	s := &LocalStore{
		path:    path,
		dim:     dim,
		records: make(map[string]Record),
		log:     log,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vectorstore: read snapshot: %w", err)
	}
	var snap localSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("vectorstore: decode snapshot %s: %w", path, err)
	}
	if snap.Dim != 0 && snap.Dim != dim {
		return nil, fmt.Errorf("vectorstore: snapshot dimension %d does not match embedding dimension %d", snap.Dim, dim)
	}
	for _, r := range snap.Records {
		s.records[r.ID] = r
	}
	log.WithField("records", len(s.records)).Info("loaded embedded vector store snapshot")
	return s, nil
}

func (s *LocalStore) Name() string { return "local" }

func (s *LocalStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Vector) != s.dim {
			return fmt.Errorf("vectorstore: record %s has dimension %d, want %d", r.ID, len(r.Vector), s.dim)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s.persistLocked()
}

func (s *LocalStore) DeleteByDocument(ctx context.Context, documentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, r := range s.records {
		if r.DocumentID == documentID {
			delete(s.records, id)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	return s.persistLocked()
}

func (s *LocalStore) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("vectorstore: query dimension %d, want %d", len(vector), s.dim)
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	hits := make([]Hit, 0, len(s.records))
	for _, r := range s.records {
		hits = append(hits, Hit{
			ID:         r.ID,
			Score:      cosine(vector, r.Vector),
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
		})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].ChunkIndex != hits[j].ChunkIndex {
			return hits[i].ChunkIndex < hits[j].ChunkIndex
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *LocalStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *LocalStore) Close() error { return nil }

// persistLocked snapshots the index atomically: write a sibling temp file,
// then rename over the live one so a crash never leaves a torn snapshot.
func (s *LocalStore) persistLocked() error {
	snap := localSnapshot{Dim: s.dim, Records: make([]Record, 0, len(s.records))}
	for _, r := range s.records {
		snap.Records = append(snap.Records, r)
	}
	sort.Slice(snap.Records, func(i, j int) bool { return snap.Records[i].ID < snap.Records[j].ID })

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("vectorstore: encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("vectorstore: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("vectorstore: replace snapshot: %w", err)
	}
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
