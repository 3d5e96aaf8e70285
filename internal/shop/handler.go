package shop

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes shop endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a shop HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Items returns the catalog.
func (h *Handler) Items(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"items": Catalog()})
}

type purchaseRequest struct {
	UserID     string `json:"user_id"`
	Item       string `json:"item"`
	ClientTxID string `json:"client_tx_id"`
}

// Purchase buys one item for the user.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return fiber.NewError(http.StatusBadRequest, "user id is required")
	}

	res, err := h.service.Purchase(c.UserContext(), req.UserID, req.Item, req.ClientTxID)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownItem):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrInsufficientFunds):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"item":     res.Item,
		"quantity": res.Quantity,
		"balance":  res.Transaction.BalanceAfter,
	})
}

// Inventory lists a user's owned items.
func (h *Handler) Inventory(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return fiber.NewError(http.StatusBadRequest, "user id is required")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id": userID,
		"items":   h.service.Inventory(userID),
	})
}
