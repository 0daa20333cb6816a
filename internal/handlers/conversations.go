package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/messaging"
)

// ConversationHandler serves the non-realtime conversation endpoints.
type ConversationHandler struct {
	service messaging.Service
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(service messaging.Service) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// ListConversations returns the caller's conversations with participants
// and the latest message, most recently active first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	conversations, err := h.service.ConversationsFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetMessages returns the full history of one conversation in chronological
// order. Non-participants are rejected.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	userID := c.GetString("userID")
	conversationID := c.Param("conversation_id")

	messages, err := h.service.MessagesIn(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// StartDirect creates or returns the direct conversation with the recipient.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipientId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	conversation, err := h.service.StartDirect(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

// StartGroup creates a named group conversation with the given recipients.
func (h *ConversationHandler) StartGroup(c *gin.Context) {
	var req struct {
		RecipientIDs []string `json:"recipientIds" binding:"required"`
		Name         string   `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	conversation, err := h.service.StartGroup(c.Request.Context(), userID, req.RecipientIDs, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, messaging.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, messaging.ErrNotParticipant), errors.Is(err, messaging.ErrPolicyViolation):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, messaging.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
