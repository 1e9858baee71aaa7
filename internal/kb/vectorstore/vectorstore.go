// Package vectorstore persists chunk embeddings and serves nearest-neighbour
// search over them. Two interchangeable backends satisfy the Store contract:
// an embedded disk-persisted store and a networked Milvus store. Backend
// selection and failover live in Open, decided once at startup.
package vectorstore

import "context"

// Record is the vector-store-side projection of a chunk: the embedding plus
// the metadata needed to re-hydrate and cross-validate results. Chunk rows
// are keyed back to records through the vector id, so no relational row id
// is stored here.
type Record struct {
	ID         string    `json:"id"` // chunk vector id (uuid)
	Vector     []float32 `json:"vector"`
	DocumentID uint      `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
}

// Hit is one search result. Score is cosine similarity; higher is closer.
type Hit struct {
	ID         string
	Score      float32
	DocumentID uint
	ChunkIndex int
}

// Store is the backend-agnostic vector store contract.
type Store interface {
	// Upsert writes records, idempotent by record ID.
	Upsert(ctx context.Context, records []Record) error
	// DeleteByDocument removes every vector whose metadata references the
	// document.
	DeleteByDocument(ctx context.Context, documentID uint) error
	// Search returns up to topK hits ranked by descending similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	// Count reports the number of stored vectors.
	Count(ctx context.Context) (int64, error)
	// Name identifies the backend ("milvus" or "local").
	Name() string
	// Close releases backend resources.
	Close() error
}
