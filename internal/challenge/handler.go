package challenge

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

// Handler exposes the challenge lifecycle over HTTP. Party ids arrive
// pre-validated from the chat front end.
type Handler struct {
	service   *Service
	resolvers ResolverRegistry
}

// NewHandler builds a challenge HTTP handler.
func NewHandler(service *Service, resolvers ResolverRegistry) *Handler {
	return &Handler{service: service, resolvers: resolvers}
}

type createRequest struct {
	ChannelID    string `json:"channel_id"`
	ChallengerID string `json:"challenger_id"`
	OpponentID   string `json:"opponent_id"`
	Dealer       bool   `json:"dealer"`
	Game         string `json:"game"`
	Stake        int64  `json:"stake"`
}

// Create opens a pending challenge.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	opponent := UserOpponent(req.OpponentID)
	if req.Dealer {
		opponent = DealerOpponent()
	}

	rec, err := h.service.Create(c.UserContext(), CreateInput{
		ChannelID:    req.ChannelID,
		ChallengerID: req.ChallengerID,
		Opponent:     opponent,
		Game:         req.Game,
		Stake:        req.Stake,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(rec)
}

// Get returns a challenge record.
func (h *Handler) Get(c *fiber.Ctx) error {
	rec, err := h.service.Get(c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.Status(http.StatusOK).JSON(rec)
}

type partyRequest struct {
	UserID string `json:"user_id"`
}

// Accept locks stakes and flips the challenge to accepted.
func (h *Handler) Accept(c *fiber.Ctx) error {
	var req partyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Accept(c.UserContext(), c.Params("id"), req.UserID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if !res.OK {
		return c.Status(http.StatusConflict).JSON(fiber.Map{"ok": false, "reason": res.Reason})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "challenge": res.Challenge})
}

// Decline flips a pending challenge to declined and releases nothing,
// because nothing was locked. The follow-up refund mirrors the original
// front end and is provably a no-op for never-accepted challenges.
func (h *Handler) Decline(c *fiber.Ctx) error {
	var req partyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	rec, err := h.service.Decline(c.UserContext(), c.Params("id"), req.UserID)
	if err != nil {
		return mapLifecycleError(err)
	}
	if err := h.service.RefundStakes(c.UserContext(), rec.ID); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(rec)
}

// Refund credits back all locked stakes for the challenge.
func (h *Handler) Refund(c *fiber.Ctx) error {
	if err := h.service.RefundStakes(c.UserContext(), c.Params("id")); err != nil {
		return mapLifecycleError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Resolve runs the game's resolver and settles the payout.
func (h *Handler) Resolve(c *fiber.Ctx) error {
	rec, err := h.service.Get(c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	if rec.State != store.ChallengeAccepted {
		return fiber.NewError(http.StatusConflict, "challenge is "+string(rec.State))
	}

	resolver, err := h.resolvers.For(rec.Game)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	winnerID, err := resolver.Resolve(c.UserContext(), rec)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	settled, err := h.service.Settle(c.UserContext(), rec.ID, winnerID)
	if err != nil {
		return mapLifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"winner_id": winnerID, "challenge": settled})
}

func mapLifecycleError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrNotAccepted):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrWrongDecliner), errors.Is(err, ErrUnknownWinner):
		return fiber.NewError(http.StatusForbidden, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
