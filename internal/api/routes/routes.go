package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/echomind/backend/internal/api/handlers"
	"github.com/echomind/backend/internal/api/middleware"
)

type Deps struct {
	JWTSecret    string
	Auth         *handlers.AuthHandler
	Conversation *handlers.ConversationHandler
	Chat         *handlers.ChatHandler
	WS           *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/auth/register", d.Auth.Register)
	r.POST("/auth/login", d.Auth.Login)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWTSecret))

	auth.GET("/auth/me", d.Auth.Me)

	auth.POST("/conversations", d.Conversation.Create)
	auth.GET("/conversations", d.Conversation.List)
	auth.GET("/conversations/:conversation_id", d.Conversation.Get)
	auth.POST("/conversations/:conversation_id/end", d.Conversation.End)
	auth.POST("/conversations/query", d.Conversation.Query)
	auth.POST("/conversations/message/stream", d.Chat.StreamMessage)

	// WebSocket
	auth.GET("/ws/chat", d.WS.ChatWS)
}
