package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/EnterpriseGoose/CoinFlipper/internal/challenge"
)

// RegisterChallengeRoutes wires the challenge lifecycle. Mutating endpoints
// sit behind the per-user cooldown.
func RegisterChallengeRoutes(r fiber.Router, h *challenge.Handler, cooldown fiber.Handler) {
	r.Post("/challenges", cooldown, h.Create)
	r.Get("/challenges/:id", h.Get)
	r.Post("/challenges/:id/accept", cooldown, h.Accept)
	r.Post("/challenges/:id/decline", h.Decline)
	r.Post("/challenges/:id/refund", h.Refund)
	r.Post("/challenges/:id/resolve", h.Resolve)
}
