package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/models"
	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/services"
)

type donationApplicationService interface {
	AcceptRequest(ctx context.Context, donorID int64, requestID int64) (*models.ChatRoom, error)
}

type DonationHandler struct {
	service donationApplicationService
}

func NewDonationHandler(service donationApplicationService) *DonationHandler {
	return &DonationHandler{service: service}
}

// AcceptRequest opens the chat room between the accepting donor and the
// requester, and hands the room token back so the client can start a
// conversation right away.
func (h *DonationHandler) AcceptRequest(c *fiber.Ctx) error {
	donorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	requestID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || requestID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request id"})
	}

	room, err := h.service.AcceptRequest(c.Context(), donorID, requestID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Blood request not found"})
		case errors.Is(err, services.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to accept request"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"room": room})
}
