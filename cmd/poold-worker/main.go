package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"upsetpool/internal/config"
	"upsetpool/internal/db"
	"upsetpool/internal/game"

	"github.com/jonboulle/clockwork"
)

// The sweeper closes auctions whose end time has passed. The engine never
// advances auction state on its own; this worker is the external caller that
// reacts to deadlines.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := game.NewService(pool, logger, clockwork.NewRealClock())

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("POOL_WORKER_RUN_ONCE")), "true")
	if runOnce {
		closed, err := svc.CloseExpiredAuctions(ctx)
		if err != nil {
			logger.Error("sweep failed", "err", err)
			os.Exit(1)
		}
		logger.Info("sweep run-once completed", "closed", closed)
		return
	}

	ticker := time.NewTicker(cfg.SweepEvery)
	defer ticker.Stop()

	logger.Info("auction sweeper running", "every", cfg.SweepEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			closed, err := svc.CloseExpiredAuctions(ctx)
			if err != nil {
				logger.Error("sweep failed", "err", err)
				continue
			}
			if closed > 0 {
				logger.Info("expired auctions closed", "count", closed)
			}
		}
	}
}
