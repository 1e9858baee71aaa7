package api

import (
	"github.com/gin-gonic/gin"

	"opskb/pkg/httpmiddleware"
	"opskb/pkg/ratelimiter"
)

// RegisterRoutes wires all handlers under /api/v1. The endpoints that reach
// the embedding or generative models sit behind a token bucket; everything
// else is cheap enough to leave unthrottled.
func RegisterRoutes(router *gin.Engine, a *API) {
	router.GET("/health", a.HealthHandler)

	queryLimit := httpmiddleware.RateLimit(ratelimiter.NewTokenBucket(5, 10))
	uploadLimit := httpmiddleware.RateLimit(ratelimiter.NewTokenBucket(2, 5))

	v1 := router.Group("/api/v1")
	{
		docs := v1.Group("/documents")
		{
			docs.POST("", uploadLimit, a.UploadDocumentHandler)
			docs.GET("", a.ListDocumentsHandler)
			docs.GET("/:id", a.GetDocumentHandler)
			docs.GET("/:id/chunks", a.GetDocumentChunksHandler)
			docs.POST("/:id/process", a.ProcessDocumentHandler)
			docs.POST("/:id/cancel", a.CancelProcessingHandler)
			docs.DELETE("/:id", a.DeleteDocumentHandler)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", a.CreateSessionHandler)
			sessions.GET("", a.ListSessionsHandler)
			sessions.DELETE("/:id", a.DeleteSessionHandler)
			sessions.POST("/:id/ask", queryLimit, a.AskHandler)
			sessions.GET("/:id/messages", a.SessionHistoryHandler)
		}

		v1.POST("/search", queryLimit, a.SearchHandler)
		v1.GET("/stats", a.StatsHandler)
	}
}
