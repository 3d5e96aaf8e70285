package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Cooldown throttles game commands to one per window per user and route,
// using Redis if available. The original chat bot kept this map in process
// memory; Redis lets multiple instances share it. Without Redis, or on cache
// errors, the middleware fails open.
func Cooldown(cache *redis.Client, window time.Duration) fiber.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}

		userID := c.Params("userID")
		if userID == "" {
			var req struct {
				UserID       string `json:"user_id"`
				ChallengerID string `json:"challenger_id"`
			}
			_ = c.BodyParser(&req)
			userID = req.UserID
			if userID == "" {
				userID = req.ChallengerID
			}
		}
		if userID == "" {
			userID = c.IP()
		}

		key := "cooldown:" + userID + ":" + strings.ToLower(c.Route().Path)
		ok, err := cache.SetNX(c.UserContext(), key, 1, window).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if !ok {
			return fiber.NewError(http.StatusTooManyRequests, "slow down, command is on cooldown")
		}
		return c.Next()
	}
}
