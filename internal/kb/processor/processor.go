// Package processor drives a document through the ingestion pipeline:
// extract, chunk, embed, index. It owns all document status transitions.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"opskb/internal/kb"
	"opskb/internal/kb/chunker"
	"opskb/internal/kb/embed"
	"opskb/internal/kb/extract"
	"opskb/internal/kb/vectorstore"
	"opskb/internal/models"
	"opskb/pkg/logger"
)

// ErrNotClaimable is returned when a document is already being processed or
// does not exist in a claimable state.
var ErrNotClaimable = errors.New("document cannot be claimed for processing")

// DocumentStore is the slice of the relational layer the processor needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id uint) (*models.Document, error)
	ClaimProcessing(ctx context.Context, id uint) (bool, error)
	MarkCompleted(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, message string) error
	ReplaceChunks(ctx context.Context, documentID uint, chunks []models.DocumentChunk) error
}

// Extractor turns a stored file into text.
type Extractor interface {
	Extract(ctx context.Context, path, declaredName string) (*extract.Result, error)
}

// Processor runs the ingestion pipeline. Safe for concurrent use; the
// conditional claim in the store serialises work per document.
type Processor struct {
	store     DocumentStore
	extractor Extractor
	chunker   *chunker.Chunker
	embedder  embed.Provider
	vectors   vectorstore.Store
	log       *logger.Logger

	mu      sync.Mutex
	cancels map[uint]context.CancelFunc
}

func New(store DocumentStore, extractor Extractor, ch *chunker.Chunker, embedder embed.Provider, vectors vectorstore.Store, log *logger.Logger) *Processor {
	return &Processor{
		store:     store,
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		vectors:   vectors,
		log:       log,
		cancels:   make(map[uint]context.CancelFunc),
	}
}

// Process runs the full pipeline for one document synchronously. The claim
// makes it safe to call from multiple goroutines with the same id: exactly
// one caller proceeds, the rest get ErrNotClaimable.
func (p *Processor) Process(ctx context.Context, id uint) error {
	claimed, err := p.store.ClaimProcessing(ctx, id)
	if err != nil {
		return fmt.Errorf("claim document %d: %w", id, err)
	}
	if !claimed {
		return fmt.Errorf("document %d: %w", id, ErrNotClaimable)
	}

	if err := p.run(ctx, id); err != nil {
		p.fail(id, err)
		return err
	}
	if err := p.store.MarkCompleted(ctx, id); err != nil {
		return fmt.Errorf("mark document %d completed: %w", id, err)
	}
	p.log.WithField("document_id", id).Info("document processed")
	return nil
}

func (p *Processor) run(ctx context.Context, id uint) error {
	doc, err := p.store.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("load document %d: %w", id, err)
	}
	log := p.log.WithField("document_id", id)

	// Reprocessing starts from a clean slate in the index. The relational
	// chunk rows are replaced atomically later, so a crash between here
	// and then leaves stale-looking rows that retrieval filters out.
	if err := p.vectors.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("%w: clear previous vectors: %v", kb.ErrVectorStoreWrite, err)
	}

	res, err := p.extractor.Extract(ctx, doc.FilePath, doc.OriginalFilename)
	if err != nil {
		return err
	}
	if res.OCRUsed {
		log.Info("text recovered via ocr")
	}

	chunks := p.chunker.Split(res.Text)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: text produced no chunks", kb.ErrExtractionFailed)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", kb.ErrEmbeddingUnavailable, len(vectors), len(chunks))
	}

	records := make([]vectorstore.Record, len(chunks))
	rows := make([]models.DocumentChunk, len(chunks))
	for i, c := range chunks {
		vectorID := uuid.New().String()
		records[i] = vectorstore.Record{
			ID:         vectorID,
			Vector:     vectors[i],
			DocumentID: id,
			ChunkIndex: c.Index,
		}
		rows[i] = models.DocumentChunk{
			DocumentID:    id,
			ChunkIndex:    c.Index,
			VectorID:      vectorID,
			Content:       c.Text,
			ContentLength: len(c.Text),
			StartOffset:   c.Start,
			EndOffset:     c.End,
		}
	}

	if err := p.vectors.Upsert(ctx, records); err != nil {
		p.rollbackVectors(id)
		return fmt.Errorf("%w: %v", kb.ErrVectorStoreWrite, err)
	}
	if err := p.store.ReplaceChunks(ctx, id, rows); err != nil {
		p.rollbackVectors(id)
		return fmt.Errorf("store chunks for document %d: %w", id, err)
	}

	log.WithField("chunks", len(chunks)).Info("document indexed")
	return nil
}

// fail records the failure on the document. A fresh context: the pipeline
// context may already be cancelled, and the status write must still land.
func (p *Processor) fail(id uint, cause error) {
	ctx := context.Background()
	if err := p.store.MarkFailed(ctx, id, cause.Error()); err != nil {
		p.log.WithError(err).WithField("document_id", id).Error("failed to record processing failure")
	}
	p.log.WithError(cause).WithField("document_id", id).Warn("document processing failed")
}

// rollbackVectors best-effort removes partial writes so a failed run leaves
// no orphaned vectors behind.
func (p *Processor) rollbackVectors(id uint) {
	if err := p.vectors.DeleteByDocument(context.Background(), id); err != nil {
		p.log.WithError(err).WithField("document_id", id).Error("rollback of partial vector writes failed")
	}
}

// Dispatch starts Process in the background and returns immediately. The
// returned error only reflects claim races detected synchronously; pipeline
// errors land on the document row.
func (p *Processor) Dispatch(id uint) {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if old, ok := p.cancels[id]; ok {
		// Should not happen while the claim holds, but never leak a
		// cancel func.
		old()
	}
	p.cancels[id] = cancel
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.cancels, id)
			p.mu.Unlock()
			cancel()
		}()
		_ = p.Process(ctx, id)
	}()
}

// Cancel aborts an in-flight background run. The pipeline notices the
// context and the document lands in failed state.
func (p *Processor) Cancel(id uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancel, ok := p.cancels[id]
	if ok {
		cancel()
	}
	return ok
}
