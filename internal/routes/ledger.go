package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/EnterpriseGoose/CoinFlipper/internal/ledger"
)

// RegisterLedgerRoutes wires balance and history endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/ledger/:userID/balance", h.Balance)
	r.Get("/ledger/:userID/transactions", h.Transactions)
}
