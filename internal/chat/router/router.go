package router

import (
	"context"

	"secure_chat_service/internal/api/handlers"
	"secure_chat_service/internal/chat/app"
	"secure_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册聊天相關的路由
func RegisterRoutes(r *fiber.App, hub *app.Hub, chatWebsocket *app.ChatWebsocketHandler, chatHTTP *handlers.ChatHandler) {
	auth := middlewares.JWTMiddleware()

	r.Get("/", handlers.Health(hub))
	r.Post("/debug", auth, handlers.DebugLogFlag)

	r.Get("/ws", auth, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	r.Post("/conversations", auth, chatHTTP.CreateConversation)
	r.Get("/conversations", auth, chatHTTP.ListConversations)
	r.Get("/conversations/:id", auth, chatHTTP.GetConversation)
	r.Get("/conversations/:id/key", auth, chatHTTP.GetConversationKey)
	r.Delete("/conversations/:id", auth, chatHTTP.DeleteConversation)

	r.Get("/messages", auth, chatHTTP.ListMessages)
	r.Get("/attachments/signed-url", auth, chatHTTP.SignedUploadURL)
}
