package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/EnterpriseGoose/CoinFlipper/internal/economy"
)

// RegisterEconomyRoutes wires the leaderboard and the manual grant trigger.
func RegisterEconomyRoutes(r fiber.Router, h *economy.Handler) {
	r.Get("/economy/leaderboard", h.Leaderboard)
	r.Post("/admin/grant-daily", h.GrantDaily)
}
