package handlers

import (
	"net/http"
	"strconv"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/services"
	apperrors "github.com/Xavierrodgriues/vacancyamerica-backend/pkg/errors"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// ChatHandler exposes direct messaging over HTTP. Every route runs behind
// AuthMiddleware, so "userId" is always set.
type ChatHandler struct {
	chat         *services.ChatService
	historyLimit int
}

func NewChatHandler(chat *services.ChatService, historyLimit int) *ChatHandler {
	return &ChatHandler{chat: chat, historyLimit: historyLimit}
}

type startConversationRequest struct {
	PeerID string `json:"peerId" binding:"required"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// StartConversation returns the caller's conversation with peerId, creating
// it on first contact
func (h *ChatHandler) StartConversation(c *gin.Context) {
	userID := c.GetString("userId")

	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.BadRequest("peerId is required"))
		return
	}

	conv, err := h.chat.StartOrGetConversation(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// ListConversations returns the inbox, most recently active first
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userId")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if pageSize > 50 {
		pageSize = 50
	}

	convs, err := h.chat.ListInbox(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetMessages returns one page of history ending before the optional cursor
// and marks the returned messages read
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := c.GetString("userId")
	conversationID := c.Param("id")
	if !utils.IsUUID(conversationID) {
		c.Error(apperrors.NotFound("conversation not found"))
		return
	}

	before := c.Query("before")
	if before != "" && !utils.IsUUID(before) {
		c.Error(apperrors.BadRequest("invalid cursor"))
		return
	}

	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.Error(apperrors.BadRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	page, err := h.chat.GetHistory(c.Request.Context(), userID, conversationID, before, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SendMessage appends a message and notifies the peer
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := c.GetString("userId")
	conversationID := c.Param("id")
	if !utils.IsUUID(conversationID) {
		c.Error(apperrors.NotFound("conversation not found"))
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.BadRequest("invalid message payload"))
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), userID, conversationID, req.Text)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// GetUnread returns the caller's unread message count across conversations
func (h *ChatHandler) GetUnread(c *gin.Context) {
	n, err := h.chat.UnreadTotal(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}
