package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"opskb/internal/models"
)

// UploadDocumentHandler accepts a multipart upload, stores the file and
// queues it for processing.
func (a *API) UploadDocumentHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	}
	if a.maxFileSize > 0 && file.Size > a.maxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds the %d byte limit", a.maxFileSize),
		})
		return
	}

	original := filepath.Base(file.Filename)
	stored := uuid.New().String() + strings.ToLower(filepath.Ext(original))
	path := filepath.Join(a.storagePath, stored)

	if err := os.MkdirAll(a.storagePath, 0o755); err != nil {
		a.fail(c, err, "failed to store file")
		return
	}
	if err := c.SaveUploadedFile(file, path); err != nil {
		a.fail(c, err, "failed to store file")
		return
	}

	doc := &models.Document{
		Filename:         stored,
		OriginalFilename: original,
		FilePath:         path,
		FileSize:         file.Size,
		FileType:         strings.TrimPrefix(strings.ToLower(filepath.Ext(original)), "."),
		Status:           models.DocumentPending,
	}
	if err := a.store.CreateDocument(c.Request.Context(), doc); err != nil {
		os.Remove(path)
		a.fail(c, err, "failed to register document")
		return
	}

	a.processor.Dispatch(doc.ID)
	a.logger.WithField("document_id", doc.ID).Info("document uploaded")
	c.JSON(http.StatusAccepted, doc)
}

// ListDocumentsHandler returns all documents with their processing status.
func (a *API) ListDocumentsHandler(c *gin.Context) {
	docs, err := a.store.ListDocuments(c.Request.Context())
	if err != nil {
		a.fail(c, err, "failed to list documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
}

// GetDocumentHandler returns one document.
func (a *API) GetDocumentHandler(c *gin.Context) {
	id, ok := a.pathID(c)
	if !ok {
		return
	}
	doc, err := a.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err, "failed to load document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetDocumentChunksHandler returns a document's chunks in order.
func (a *API) GetDocumentChunksHandler(c *gin.Context) {
	id, ok := a.pathID(c)
	if !ok {
		return
	}
	if _, err := a.store.GetDocument(c.Request.Context(), id); err != nil {
		a.fail(c, err, "failed to load document")
		return
	}
	chunks, err := a.store.GetChunks(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err, "failed to load chunks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks, "total": len(chunks)})
}

// ProcessDocumentHandler (re)queues processing for a document. Pending,
// completed and failed documents are accepted; an in-flight one returns 409.
func (a *API) ProcessDocumentHandler(c *gin.Context) {
	id, ok := a.pathID(c)
	if !ok {
		return
	}
	doc, err := a.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err, "failed to load document")
		return
	}
	if doc.Status == models.DocumentProcessing {
		c.JSON(http.StatusConflict, gin.H{"error": "document is already being processed"})
		return
	}

	a.processor.Dispatch(id)
	c.JSON(http.StatusAccepted, gin.H{"document_id": id, "status": "queued"})
}

// CancelProcessingHandler aborts an in-flight background run.
func (a *API) CancelProcessingHandler(c *gin.Context) {
	id, ok := a.pathID(c)
	if !ok {
		return
	}
	if !a.processor.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no processing run in flight for this document"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": id, "status": "cancelling"})
}

// DeleteDocumentHandler removes a document everywhere: any in-flight
// processing run is cancelled first so it stops writing vectors, then the
// vectors go, then the relational rows, then the stored file.
func (a *API) DeleteDocumentHandler(c *gin.Context) {
	id, ok := a.pathID(c)
	if !ok {
		return
	}
	doc, err := a.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err, "failed to load document")
		return
	}

	if a.processor.Cancel(id) {
		a.logger.WithField("document_id", id).Info("cancelled in-flight processing for deletion")
	}
	if err := a.vectors.DeleteByDocument(c.Request.Context(), id); err != nil {
		a.fail(c, err, "failed to remove document vectors")
		return
	}
	if err := a.store.DeleteDocument(c.Request.Context(), id); err != nil {
		a.fail(c, err, "failed to delete document")
		return
	}
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		a.logger.WithError(err).WithField("path", doc.FilePath).Warn("stored file not removed")
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (a *API) pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
