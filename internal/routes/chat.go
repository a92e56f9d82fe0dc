package routes

import (
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/handlers"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

func RegisterChatRoutes(r gin.IRouter, h *handlers.ChatHandler, auth gin.HandlerFunc) {
	chat := r.Group("/chat")
	chat.Use(auth)
	{
		chat.POST("/conversations", h.StartConversation)
		chat.GET("/conversations", h.ListConversations)
		chat.GET("/conversations/:id/messages", h.GetMessages)
		chat.POST("/conversations/:id/messages", middleware.ChatRateLimit(), h.SendMessage)
		chat.GET("/unread", h.GetUnread)
	}
}
