package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialer_sync_backend/internal/activities"
	"dialer_sync_backend/internal/agents"
	"dialer_sync_backend/internal/audit"
	"dialer_sync_backend/internal/calllists"
	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/internal/compliance"
	"dialer_sync_backend/internal/contacts"
	"dialer_sync_backend/internal/events"
	apphttp "dialer_sync_backend/internal/http"
	"dialer_sync_backend/internal/http/router"
	"dialer_sync_backend/internal/identity"
	"dialer_sync_backend/internal/intake"
	syncrouter "dialer_sync_backend/internal/router"
	"dialer_sync_backend/internal/scheduler"
	"dialer_sync_backend/platform/config"
	"dialer_sync_backend/platform/db"
	"dialer_sync_backend/platform/logger"
	"dialer_sync_backend/platform/metrics"
	"dialer_sync_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Prometheus registry served on /metrics
	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	events.RegisterMetricsSink(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	// REST clients for the external systems
	crmClient := clients.NewCRMClient(cfg)
	dialerClient := clients.NewDialerClient(cfg)

	// ========================================================================
	// Domain Wiring (Composition Root)
	// ========================================================================

	agentDirectory, err := agents.LoadDirectory(cfg.GetAgentDirectoryPath())
	if err != nil {
		log.Error("failed to load agent directory", "error", err, "path", cfg.GetAgentDirectoryPath())
		panic("failed to load agent directory: " + err.Error())
	}
	agentService := agents.NewService(agents.NewResolver(agentDirectory), agents.NewStateRepository(pool))

	complianceService := compliance.NewService(compliance.NewRepository(pool), eventBus, log)

	mappingRepo := identity.NewRepository(pool)

	intentResolver := calllists.NewIntentResolver(cfg.GetListMatchMode(), nil)
	reconciler := calllists.NewReconciler(
		calllists.NewRegistryRepository(pool),
		calllists.NewMembershipRepository(pool),
		dialerClient,
		log,
	)

	contactHandler := contacts.NewHandler(
		mappingRepo,
		agentService,
		complianceService,
		intentResolver,
		reconciler,
		dialerClient,
		eventBus,
		log,
		cfg.GetSelfOriginTag(),
	)
	activityHandler := activities.NewHandler(mappingRepo, crmClient, complianceService, log, cfg.GetSelfOriginTag())

	schedulerClient, closeScheduler := initSchedulerClient(cfg, pool, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	auditRepo := audit.NewRepository(pool)

	// Dialer-side tag changes that drive list enrollment pass the gate even
	// though the CRM owns the contact entity.
	policyTable := syncrouter.NewPolicyTable()
	policyTable.RegisterException(intake.SourceDialer, intake.EntityContact,
		syncrouter.TagTriggerException(intentResolver.TagTriggers()))

	eventRouter := syncrouter.NewRouter(
		intake.NewRepository(pool),
		auditRepo,
		syncrouter.NewOriginDetector(cfg.GetSelfOriginTag()),
		policyTable,
		contactHandler,
		contactHandler,
		activityHandler,
		schedulerClient,
		eventBus,
		log,
	)

	intakeModule := intake.NewModule(pool, eventRouter, cfg, val, log)
	auditModule := audit.NewModule(pool, eventRouter)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Metrics:  registry,
		Modules: []apphttp.Module{
			intakeModule,
			auditModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initSchedulerClient wires the durable job queue client. Without Redis the
// API still serves webhooks; broadcast events then fail at dispatch and
// surface through the audit trail.
func initSchedulerClient(cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; analytics recompute disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg, scheduler.NewRepository(pool), log)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
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
