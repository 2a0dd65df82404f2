package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/models"
	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/services"
	chatws "github.com/blnivas20/Blood-Connect-Full-Stack/internal/websocket"
	"github.com/blnivas20/Blood-Connect-Full-Stack/pkg/utils"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID int64) (*models.ConversationDirectory, error)
	ListMessages(ctx context.Context, actorID int64, roomToken string) ([]models.ChatMessage, error)
	SendMessage(ctx context.Context, actorID int64, roomToken string, content string) (*services.ChatDelivery, error)
	Authorize(ctx context.Context, actorID int64, roomToken string) (string, error)
}

type ChatHandler struct {
	service        chatApplicationService
	hub            *chatws.Hub
	jwtSecret      string
	wsWriteTimeout time.Duration
}

func NewChatHandler(service chatApplicationService, hub *chatws.Hub, jwtSecret string, wsWriteTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		service:        service,
		hub:            hub,
		jwtSecret:      jwtSecret,
		wsWriteTimeout: wsWriteTimeout,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	directory, err := h.service.ListConversations(c.Context(), actorID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(directory)
}

// GetMessages serves the transcript for one room token. The credential
// rides on the request itself (query token or bearer header) because the
// websocket client reuses the same addressing.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	claims, err := h.credentialClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	actorID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	roomToken := strings.TrimSpace(c.Params("token"))
	if roomToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid room token"})
	}

	messages, err := h.service.ListMessages(c.Context(), actorID, roomToken)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(messages)
}

// WebSocketAuth gates the upgrade: valid credential and room membership,
// or the connection is refused before it ever opens.
func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.credentialClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	actorID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	roomToken := strings.TrimSpace(c.Params("token"))
	if roomToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid room token"})
	}

	username, err := h.service.Authorize(c.Context(), actorID, roomToken)
	if err != nil {
		return mapChatError(c, err)
	}

	c.Locals("user_id", actorID)
	c.Locals("username", username)
	c.Locals("room_token", roomToken)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(int64)
	username, _ := conn.Locals("username").(string)
	roomToken, _ := conn.Locals("room_token").(string)

	client := chatws.NewClient(h.hub, conn, roomToken, userID, username)

	h.hub.Register(client)
	go client.WritePump(h.wsWriteTimeout)
	client.ReadPump(h.service)
}

func (h *ChatHandler) credentialClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func parseActorID(c *fiber.Ctx) (int64, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, errors.New("missing user id")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrRoomNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Room not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
