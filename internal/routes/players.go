package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/EnterpriseGoose/CoinFlipper/internal/player"
)

// RegisterPlayerRoutes wires profile and opt-in endpoints.
func RegisterPlayerRoutes(r fiber.Router, h *player.Handler) {
	r.Get("/players/:userID", h.Get)
	r.Post("/players/:userID/play", h.Play)
	r.Post("/players/:userID/see", h.See)
	r.Post("/players/:userID/optout", h.OptOut)
}
