package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsidian-neural/loop-service/internal/api/middleware"
	"github.com/obsidian-neural/loop-service/internal/services/credits"
	"github.com/obsidian-neural/loop-service/internal/services/sessions"
)

// SessionsHandler handles conversational session endpoints.
type SessionsHandler struct {
	store *sessions.Store
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(store *sessions.Store) *SessionsHandler {
	return &SessionsHandler{
		store: store,
	}
}

// ResetSessionResponse represents the session reset response.
type ResetSessionResponse struct {
	Status string `json:"status"`
}

// ResetSession handles POST /session/reset
// @Summary Reset the conversational session
// @Description Discards the caller's conversation history; the next generation starts fresh
// @Tags Sessions
// @Produce json
// @Param X-API-Key header string true "API key"
// @Success 200 {object} ResetSessionResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /api/v1/session/reset [post]
func (h *SessionsHandler) ResetSession(c *gin.Context) {
	apiKey := middleware.GetAPIKey(c)
	h.store.Reset(credits.UserKey(apiKey))

	c.JSON(http.StatusOK, ResetSessionResponse{Status: "reset"})
}
