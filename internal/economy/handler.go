package economy

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes economy endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an economy HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Leaderboard returns the richest opted-in users.
func (h *Handler) Leaderboard(c *fiber.Ctx) error {
	limit := 10
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return fiber.NewError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"leaderboard": h.service.Leaderboard(limit)})
}

type grantRequest struct {
	Date string `json:"date"`
}

// GrantDaily triggers the recurring allowance by hand. It shares the
// scheduled run's idempotency keys, so triggering an already-paid date is a
// no-op.
func (h *Handler) GrantDaily(c *fiber.Ctx) error {
	var req grantRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	date := req.Date
	if date == "" {
		date = h.service.Today()
	}
	if err := h.service.GrantDailyAll(c.UserContext(), date); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"date": date})
}
