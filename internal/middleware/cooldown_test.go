package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func setupCooldownApp(t *testing.T) (*fiber.App, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/players/:userID/play", Cooldown(cache, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, mr
}

func TestCooldown_BlocksSecondCallInWindow(t *testing.T) {
	app, _ := setupCooldownApp(t)

	first, err := app.Test(httptest.NewRequest("POST", "/players/U1/play", nil))
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if first.StatusCode != fiber.StatusOK {
		t.Fatalf("first request status %d", first.StatusCode)
	}

	second, err := app.Test(httptest.NewRequest("POST", "/players/U1/play", nil))
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 on cooldown, got %d", second.StatusCode)
	}
}

func TestCooldown_IndependentUsers(t *testing.T) {
	app, _ := setupCooldownApp(t)

	if res, _ := app.Test(httptest.NewRequest("POST", "/players/U1/play", nil)); res.StatusCode != fiber.StatusOK {
		t.Fatalf("U1 blocked unexpectedly: %d", res.StatusCode)
	}
	if res, _ := app.Test(httptest.NewRequest("POST", "/players/U2/play", nil)); res.StatusCode != fiber.StatusOK {
		t.Fatalf("U2 must have its own window, got %d", res.StatusCode)
	}
}

func TestCooldown_ExpiresWithWindow(t *testing.T) {
	app, mr := setupCooldownApp(t)

	if res, _ := app.Test(httptest.NewRequest("POST", "/players/U1/play", nil)); res.StatusCode != fiber.StatusOK {
		t.Fatalf("first request blocked: %d", res.StatusCode)
	}

	mr.FastForward(2 * time.Minute)

	if res, _ := app.Test(httptest.NewRequest("POST", "/players/U1/play", nil)); res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected cooldown to expire, got %d", res.StatusCode)
	}
}

func TestCooldown_NoRedisIsNoOp(t *testing.T) {
	app := fiber.New()
	app.Post("/players/:userID/play", Cooldown(nil, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 3; i++ {
		res, err := app.Test(httptest.NewRequest("POST", "/players/U1/play", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if res.StatusCode != fiber.StatusOK {
			t.Fatalf("nil cache must fail open, got %d", res.StatusCode)
		}
	}
}
