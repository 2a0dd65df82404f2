package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/config"
	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/handlers"
	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/middleware"
	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/repository"
	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/services"
	chatws "github.com/blnivas20/Blood-Connect-Full-Stack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	userRepo := repository.NewUserRepository(db)

	chatHub := chatws.NewHub()
	go chatHub.Run()

	chatService := services.NewChatService(db, roomRepo, messageRepo, userRepo)
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret, cfg.WSWriteTimeout)

	donationService := services.NewDonationService(roomRepo, requestRepo)
	donationHandler := handlers.NewDonationHandler(donationService)

	api := app.Group("/api")

	chat := api.Group("/chat")
	chat.Get("/conversations", middleware.AuthRequired(cfg.JWTSecret), chatHandler.ListConversations)
	// Credential arrives on the request itself (query token or bearer
	// header), same addressing the websocket endpoint uses.
	chat.Get("/messages/:token", chatHandler.GetMessages)

	donations := api.Group("/donations", middleware.AuthRequired(cfg.JWTSecret))
	donations.Post("/:id/accept", donationHandler.AcceptRequest)

	app.Use("/ws/chat/:token", chatHandler.WebSocketAuth)
	app.Get("/ws/chat/:token", websocket.New(chatHandler.HandleWebSocket))
}
