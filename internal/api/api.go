// Package api exposes the knowledge base over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"opskb/internal/kb"
	"opskb/internal/kb/chat"
	"opskb/internal/kb/processor"
	"opskb/internal/kb/retriever"
	"opskb/internal/kb/vectorstore"
	"opskb/internal/store"
	"opskb/pkg/logger"
)

// API bundles the handlers and their dependencies.
type API struct {
	store       *store.Store
	processor   *processor.Processor
	retriever   *retriever.Retriever
	chat        *chat.Service
	vectors     vectorstore.Store
	degraded    bool // vector backend fell back to embedded at startup
	storagePath string
	maxFileSize int64
	logger      *logger.Logger
}

// NewAPI creates the handler set.
func NewAPI(st *store.Store, proc *processor.Processor, ret *retriever.Retriever, chatSvc *chat.Service, vectors vectorstore.Store, degraded bool, storagePath string, maxFileSize int64, log *logger.Logger) *API {
	return &API{
		store:       st,
		processor:   proc,
		retriever:   ret,
		chat:        chatSvc,
		vectors:     vectors,
		degraded:    degraded,
		storagePath: storagePath,
		maxFileSize: maxFileSize,
		logger:      log,
	}
}

// fail maps pipeline error kinds onto HTTP statuses with a safe message.
func (a *API) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, kb.ErrInputRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, processor.ErrNotClaimable):
		c.JSON(http.StatusConflict, gin.H{"error": "document is already being processed"})
	case errors.Is(err, kb.ErrEmbeddingUnavailable):
		a.logger.WithError(err).Error("embedding provider unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "embedding provider unavailable"})
	default:
		a.logger.WithError(err).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
