package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialer_sync_backend/internal/analytics"
	"dialer_sync_backend/internal/audit"
	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/internal/events"
	"dialer_sync_backend/internal/scheduler"
	"dialer_sync_backend/platform/config"
	"dialer_sync_backend/platform/db"
	"dialer_sync_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	var analyticsPool *pgxpool.Pool
	if err := withRetry(ctx, log, "analytics database connection", 5, 2*time.Second, func() error {
		p, err := db.NewAnalyticsPool(ctx, cfg)
		if err != nil {
			return err
		}
		analyticsPool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to analytics database", "error", err)
		panic("failed to connect to analytics database: " + err.Error())
	}
	defer analyticsPool.Close()
	log.Info("database connections established")

	eventBus := events.NewInMemoryBus(log)
	crmClient := clients.NewCRMClient(cfg)

	analyticsService := analytics.NewService(
		analytics.NewRepository(analyticsPool),
		crmClient,
		eventBus,
		log,
		cfg.GetResponseAttributionWindow(),
	)

	worker, err := scheduler.NewWorker(
		cfg,
		scheduler.NewRepository(pool),
		analyticsService,
		audit.NewRepository(pool),
		log,
	)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	log.Info("worker listening for jobs", "queue", cfg.GetAsynqQueueName())
	worker.Run(ctx)
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
