package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/EnterpriseGoose/CoinFlipper/internal/shop"
)

// RegisterShopRoutes wires catalog, purchase and inventory endpoints.
func RegisterShopRoutes(r fiber.Router, h *shop.Handler, cooldown fiber.Handler) {
	r.Get("/shop/items", h.Items)
	r.Post("/shop/purchase", cooldown, h.Purchase)
	r.Get("/shop/:userID/inventory", h.Inventory)
}
