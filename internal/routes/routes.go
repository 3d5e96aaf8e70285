package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/EnterpriseGoose/CoinFlipper/internal/archive"
	"github.com/EnterpriseGoose/CoinFlipper/internal/challenge"
	"github.com/EnterpriseGoose/CoinFlipper/internal/config"
	"github.com/EnterpriseGoose/CoinFlipper/internal/economy"
	"github.com/EnterpriseGoose/CoinFlipper/internal/keymutex"
	"github.com/EnterpriseGoose/CoinFlipper/internal/ledger"
	"github.com/EnterpriseGoose/CoinFlipper/internal/middleware"
	"github.com/EnterpriseGoose/CoinFlipper/internal/notification"
	"github.com/EnterpriseGoose/CoinFlipper/internal/player"
	"github.com/EnterpriseGoose/CoinFlipper/internal/shop"
	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// are optional: without DB the archive is a noop, without Cache the command
// cooldown is disabled.
type Deps struct {
	Cfg    config.Config
	Store  *store.FileStore
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Services bundles the constructed domain services so main can hand them to
// the scheduler as well.
type Services struct {
	Ledger    *ledger.Service
	Economy   *economy.Service
	Challenge *challenge.Service
	Player    *player.Service
	Shop      *shop.Service
}

// Setup configures middlewares and all application routes, returning the
// wired services.
func Setup(app *fiber.App, d Deps) (Services, error) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	var archiver archive.Archiver = archive.Noop()
	if d.DB != nil {
		archiver = archive.NewPostgres(d.DB)
	}

	locks := keymutex.New(d.Cfg.LockTimeout)
	ledgerSvc := ledger.NewService(d.Store, locks, archiver, d.Logger)
	economySvc := economy.NewService(d.Store, ledgerSvc, d.Cfg.DailyGrantAmount, d.Cfg.Location(), d.Logger)
	notifier := notification.NewLoggerNotifier(d.Logger)
	challengeSvc := challenge.NewService(d.Store, ledgerSvc, economySvc, notifier, d.Logger)
	playerSvc := player.NewService(d.Store, d.Logger)
	shopSvc := shop.NewService(d.Store, ledgerSvc, d.Logger)

	RegisterHealthRoutes(app, d)

	// static informational page
	app.Static("/", d.Cfg.WebDir)

	cooldown := middleware.Cooldown(d.Cache, d.Cfg.Cooldown)

	api := app.Group("/api/v1")
	RegisterLedgerRoutes(api, ledger.NewHandler(ledgerSvc))
	RegisterChallengeRoutes(api, challenge.NewHandler(challengeSvc, challenge.DefaultResolvers()), cooldown)
	RegisterPlayerRoutes(api, player.NewHandler(playerSvc))
	RegisterShopRoutes(api, shop.NewHandler(shopSvc), cooldown)
	RegisterEconomyRoutes(api, economy.NewHandler(economySvc))

	return Services{
		Ledger:    ledgerSvc,
		Economy:   economySvc,
		Challenge: challengeSvc,
		Player:    playerSvc,
		Shop:      shopSvc,
	}, nil
}
