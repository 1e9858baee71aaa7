package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateSessionHandler starts a new conversation.
func (a *API) CreateSessionHandler(c *gin.Context) {
	var payload struct {
		Name string `json:"name"`
	}
	// body is optional; unnamed sessions are fine
	_ = c.ShouldBindJSON(&payload)

	session, err := a.store.CreateSession(c.Request.Context(), payload.Name)
	if err != nil {
		a.fail(c, err, "failed to create session")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ListSessionsHandler returns all sessions, most recently active first.
func (a *API) ListSessionsHandler(c *gin.Context) {
	sessions, err := a.store.ListSessions(c.Request.Context())
	if err != nil {
		a.fail(c, err, "failed to list sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

// DeleteSessionHandler removes a session and its history.
func (a *API) DeleteSessionHandler(c *gin.Context) {
	id, ok := a.pathID(c)
	if !ok {
		return
	}
	if err := a.store.DeleteSession(c.Request.Context(), id); err != nil {
		a.fail(c, err, "failed to delete session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// AskHandler answers a question within a session.
func (a *API) AskHandler(c *gin.Context) {
	id, ok := a.pathID(c)
	if !ok {
		return
	}
	var payload struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"` // optional; 0 uses the configured default
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	res, err := a.chat.Ask(c.Request.Context(), id, payload.Question, payload.TopK)
	if err != nil {
		a.fail(c, err, "failed to answer question")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":         res.Text,
		"citations":      res.Citations,
		"generative":     res.Generative,
		"low_confidence": res.LowConfidence,
	})
}

// SessionHistoryHandler returns the session's message log in order.
func (a *API) SessionHistoryHandler(c *gin.Context) {
	id, ok := a.pathID(c)
	if !ok {
		return
	}
	msgs, err := a.store.History(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err, "failed to load history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "total": len(msgs)})
}
