package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EnterpriseGoose/CoinFlipper/internal/config"
	"github.com/EnterpriseGoose/CoinFlipper/internal/idempotency"
	"github.com/EnterpriseGoose/CoinFlipper/internal/infra"
	"github.com/EnterpriseGoose/CoinFlipper/internal/logging"
	"github.com/EnterpriseGoose/CoinFlipper/internal/notification"
	"github.com/EnterpriseGoose/CoinFlipper/internal/scheduler"
	"github.com/EnterpriseGoose/CoinFlipper/internal/server"
	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppEnv)

	ctx := context.Background()

	st, err := store.Open(cfg.DataDir, cfg.StateFile, logger)
	if err != nil {
		logger.Error("open snapshot store", "error", err)
		os.Exit(1)
	}

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	srv, err := server.New(cfg, st, db, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	services := srv.Services()
	notifier := notification.NewLoggerNotifier(logger)
	once := idempotency.New(st, logger)

	// announcements run at most once per period, surviving restarts through
	// the snapshot-backed registry
	sched := scheduler.New(cfg.Location(), logger)
	sched.Daily(jobCtx, "daily-grant", func(ctx context.Context) error {
		date := services.Economy.Today()
		if err := services.Economy.GrantDailyAll(ctx, date); err != nil {
			return err
		}
		ann := st.Get().Announcements
		if !ann.DailyTopEnabled || ann.ChannelID == "" {
			return nil
		}
		_, err := once.RunOnce("announce:daily:"+date, 0, func() error {
			return notifier.Send(ctx, notification.Message{
				Kind:        notification.KindDailyGrant,
				Destination: ann.ChannelID,
				Body:        fmt.Sprintf("daily coins paid out for %s", date),
			})
		})
		return err
	})
	sched.Weekly(jobCtx, "weekly-top", func(ctx context.Context) error {
		ann := st.Get().Announcements
		if !ann.WeeklyResetEnabled || ann.ChannelID == "" {
			return nil
		}
		year, week := time.Now().In(cfg.Location()).ISOWeek()
		_, err := once.RunOnce(fmt.Sprintf("announce:weekly:%d-W%02d", year, week), 0, func() error {
			body := "weekly standings:"
			for i, entry := range services.Economy.Leaderboard(5) {
				body += fmt.Sprintf(" %d. %s (%d)", i+1, entry.UserID, entry.Balance)
			}
			return notifier.Send(ctx, notification.Message{
				Kind:        notification.KindWeeklyTop,
				Destination: ann.ChannelID,
				Body:        body,
			})
		})
		return err
	})

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	cancelJobs()
	sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
