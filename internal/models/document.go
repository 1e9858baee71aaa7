package models

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentStatus is the lifecycle state of an uploaded document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"    // uploaded, waiting for a worker
	DocumentProcessing DocumentStatus = "processing" // claimed by exactly one worker
	DocumentCompleted  DocumentStatus = "completed"  // all chunks embedded and stored
	DocumentFailed     DocumentStatus = "failed"     // no usable text or a pipeline error
)

// Document is an uploaded file tracked through the ingestion pipeline.
// Status is mutated only by the processor; the conditional update on Status is
// the mutual-exclusion primitive that prevents double processing.
type Document struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	Filename         string `gorm:"not null;size:255" json:"filename"`          // stored name on disk
	OriginalFilename string `gorm:"not null;size:255" json:"original_filename"` // name supplied at upload
	FilePath         string `gorm:"not null;size:500" json:"-"`
	FileSize         int64  `gorm:"not null" json:"file_size"`
	FileType         string `gorm:"not null;size:50" json:"file_type"`

	Status       DocumentStatus `gorm:"type:varchar(20);default:'pending';not null;index" json:"status"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`

	UploadedAt  time.Time  `gorm:"autoCreateTime" json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	Chunks []DocumentChunk `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// DocumentChunk is one bounded segment of a document's extracted text.
// Immutable once created; VectorID correlates the row with its embedding in
// the vector store.
type DocumentChunk struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	DocumentID uint   `gorm:"not null;index" json:"document_id"`
	ChunkIndex int    `gorm:"not null" json:"chunk_index"`
	VectorID   string `gorm:"not null;size:64;uniqueIndex" json:"vector_id"`

	Content       string `gorm:"type:text;not null" json:"content"`
	ContentLength int    `gorm:"not null" json:"content_length"`
	StartOffset   int    `gorm:"not null" json:"start_offset"` // rune offset into extracted text
	EndOffset     int    `gorm:"not null" json:"end_offset"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ChatSession is an independent conversation. Deleting a session removes all
// of its messages.
type ChatSession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100" json:"name"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastActiveAt time.Time `gorm:"autoUpdateTime" json:"last_active_at"`

	Messages []ChatMessage `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Roles for chat messages.
const (
	RoleQuestion = "question"
	RoleAnswer   = "answer"
)

// ChatMessage is one turn in a session's append-only log. Citations is only
// populated on answer messages.
type ChatMessage struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SessionID uint           `gorm:"not null;index" json:"session_id"`
	Role      string         `gorm:"not null;size:20" json:"role"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Citations datatypes.JSON `json:"citations,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
