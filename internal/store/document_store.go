package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"opskb/internal/models"
)

// CreateDocument registers an uploaded file in pending state.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	return s.DB.WithContext(ctx).Create(doc).Error
}

// GetDocument loads one document by id.
func (s *Store) GetDocument(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	if err := s.DB.WithContext(ctx).First(&doc, id).Error; err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

// ListDocuments returns all documents, newest upload first.
func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	if err := s.DB.WithContext(ctx).Order("uploaded_at DESC, id DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteDocument removes the document row; chunk rows cascade.
func (s *Store) DeleteDocument(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Document{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ClaimProcessing attempts to take exclusive ownership of a document for
// processing. The single conditional UPDATE is the whole mutual-exclusion
// story: exactly one concurrent caller sees RowsAffected == 1. Documents in
// processing state cannot be claimed again until the current run settles.
func (s *Store) ClaimProcessing(ctx context.Context, id uint) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND status IN ?", id, []models.DocumentStatus{
			models.DocumentPending,
			models.DocumentCompleted,
			models.DocumentFailed,
		}).
		Updates(map[string]interface{}{
			"status":        models.DocumentProcessing,
			"error_message": "",
			"processed_at":  nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCompleted finishes a processing run successfully.
func (s *Store) MarkCompleted(ctx context.Context, id uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND status = ?", id, models.DocumentProcessing).
		Updates(map[string]interface{}{
			"status":       models.DocumentCompleted,
			"processed_at": &now,
		}).Error
}

// MarkFailed finishes a processing run with an error. The message is stored
// for operators; it must never contain file content.
func (s *Store) MarkFailed(ctx context.Context, id uint, message string) error {
	return s.DB.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.DocumentFailed,
			"error_message": message,
		}).Error
}

// ReplaceChunks swaps the document's chunk set atomically. Reprocessing a
// document must never leave a mix of old and new chunks visible.
func (s *Store) ReplaceChunks(ctx context.Context, documentID uint, chunks []models.DocumentChunk) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error
	})
}

// GetChunks returns a document's chunks in order.
func (s *Store) GetChunks(ctx context.Context, documentID uint) ([]models.DocumentChunk, error) {
	var chunks []models.DocumentChunk
	err := s.DB.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// ChunkRef is a chunk joined with the document it belongs to.
type ChunkRef struct {
	Chunk        models.DocumentChunk
	DocumentName string
}

// ResolveVectorIDs maps vector ids back to their chunk rows. Vector ids with
// no surviving chunk row are simply absent from the result; the caller treats
// them as stale index entries.
func (s *Store) ResolveVectorIDs(ctx context.Context, vectorIDs []string) (map[string]ChunkRef, error) {
	if len(vectorIDs) == 0 {
		return map[string]ChunkRef{}, nil
	}

	var chunks []models.DocumentChunk
	err := s.DB.WithContext(ctx).Where("vector_id IN ?", vectorIDs).Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return map[string]ChunkRef{}, nil
	}

	docIDs := make([]uint, 0, len(chunks))
	seen := make(map[uint]bool)
	for _, c := range chunks {
		if !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			docIDs = append(docIDs, c.DocumentID)
		}
	}
	var docs []models.Document
	if err := s.DB.WithContext(ctx).Where("id IN ?", docIDs).Find(&docs).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(docs))
	completed := make(map[uint]bool, len(docs))
	for _, d := range docs {
		names[d.ID] = d.OriginalFilename
		completed[d.ID] = d.Status == models.DocumentCompleted
	}

	out := make(map[string]ChunkRef, len(chunks))
	for _, c := range chunks {
		// Chunks of documents mid-reprocess or failed are not servable.
		if !completed[c.DocumentID] {
			continue
		}
		out[c.VectorID] = ChunkRef{Chunk: c, DocumentName: names[c.DocumentID]}
	}
	return out, nil
}

// StatusCounts reports how many documents sit in each lifecycle state.
func (s *Store) StatusCounts(ctx context.Context) (map[models.DocumentStatus]int64, error) {
	type row struct {
		Status models.DocumentStatus
		N      int64
	}
	var rows []row
	err := s.DB.WithContext(ctx).Model(&models.Document{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.DocumentStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// ChunkCount reports the total number of stored chunks.
func (s *Store) ChunkCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.DocumentChunk{}).Count(&n).Error
	return n, err
}
