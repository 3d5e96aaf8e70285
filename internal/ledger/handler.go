package ledger

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes ledger read endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns the user's current amount.
func (h *Handler) Balance(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return fiber.NewError(http.StatusBadRequest, "user id is required")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id": userID,
		"balance": h.service.Balance(userID),
	})
}

// Transactions returns the user's recent ledger entries, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return fiber.NewError(http.StatusBadRequest, "user id is required")
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return fiber.NewError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":      userID,
		"transactions": h.service.History(userID, limit),
	})
}
