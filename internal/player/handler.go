package player

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a player HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type toggleRequest struct {
	On bool `json:"on"`
}

// Play opts a user in or out of games.
func (h *Handler) Play(c *fiber.Ctx) error {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	u, err := h.service.SetPlay(c.Params("userID"), req.On)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(u)
}

// See toggles the activity feed.
func (h *Handler) See(c *fiber.Ctx) error {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	u, err := h.service.SetSee(c.Params("userID"), req.On)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(u)
}

// OptOut clears both flags.
func (h *Handler) OptOut(c *fiber.Ctx) error {
	u, err := h.service.OptOut(c.Params("userID"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(u)
}

// Get returns a profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	u, err := h.service.Get(c.Params("userID"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(u)
}
