package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"opskb/internal/models"
)

// SearchHandler runs a raw retrieval query and returns the evidence set,
// without answer synthesis. Useful for debugging relevance.
func (a *API) SearchHandler(c *gin.Context) {
	var payload struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"` // optional; 0 uses the configured default
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	evidence, err := a.retriever.Retrieve(c.Request.Context(), payload.Query, payload.TopK)
	if err != nil {
		a.fail(c, err, "search failed")
		return
	}

	results := make([]gin.H, len(evidence))
	for i, ev := range evidence {
		results[i] = gin.H{
			"document_id":   ev.DocumentID,
			"document_name": ev.DocumentName,
			"chunk_id":      ev.ChunkID,
			"chunk_index":   ev.ChunkIndex,
			"content":       ev.Text,
			"similarity":    ev.Similarity,
			"below_floor":   ev.BelowFloor,
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

// StatsHandler reports corpus-level counts.
func (a *API) StatsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		statuses map[models.DocumentStatus]int64
		chunks   int64
		vectors  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		statuses, err = a.store.StatusCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		chunks, err = a.store.ChunkCount(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		vectors, err = a.vectors.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		a.fail(c, err, "failed to gather statistics")
		return
	}

	var total int64
	for _, n := range statuses {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"documents":      total,
		"by_status":      statuses,
		"chunks":         chunks,
		"vectors":        vectors,
		"vector_backend": a.vectors.Name(),
		"degraded":       a.degraded,
	})
}

// HealthHandler reports liveness plus the vector backend actually in use.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"vector_backend": a.vectors.Name(),
		"degraded":       a.degraded,
	})
}
