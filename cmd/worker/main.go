package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-smb/internal/app"
	"github.com/odyssey-erp/odyssey-smb/internal/dashboard"
	"github.com/odyssey-erp/odyssey-smb/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-smb/internal/jobs"
	"github.com/odyssey-erp/odyssey-smb/internal/observability"
	"github.com/odyssey-erp/odyssey-smb/internal/orders"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
	"github.com/odyssey-erp/odyssey-smb/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	sanityLimit, err := cfg.SanityLimit()
	if err != nil {
		return err
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	locker := cache.NewLocker(redisClient)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)

	inventoryService := inventory.NewService(
		inventory.NewRepository(pool),
		auditLogger,
		idempotencyStore,
		dashboardCache,
		logger,
		inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock},
	)
	orderService := orders.NewService(orders.NewRepository(pool), orders.ServiceDeps{
		Inventory:   inventoryService,
		Audit:       auditLogger,
		Cache:       dashboardCache,
		Observer:    metrics,
		Logger:      logger,
		SanityLimit: sanityLimit,
	})
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), inventoryService, dashboardCache, logger)

	sender := jobs.NewSMTPSender(jobs.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		From:       cfg.SMTPFrom,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		RequireTLS: cfg.SMTPRequireTLS,
		Timeout:    30 * time.Second,
	})
	quotationEmail := jobs.NewQuotationEmailJob(sender, cfg.CompanyName, cfg.Locale(), logger, jobMetrics)
	lowStock := &jobs.LowStockScanJob{Stock: inventoryService, Locker: locker, Gauge: metrics, Logger: logger, Metrics: jobMetrics}
	integrity := &jobs.OrderIntegrityJob{Orders: orderService, Locker: locker, Gauge: metrics, Logger: logger, Metrics: jobMetrics}
	cleanup := &jobs.IdempotencyCleanupJob{Store: idempotencyStore, Retention: cfg.IdempotencyRetention, Logger: logger, Metrics: jobMetrics}
	warmup := &jobs.DashboardWarmupJob{Dashboard: dashboardService, Logger: logger, Metrics: jobMetrics}

	cron, err := jobs.DefaultCron()
	if err != nil {
		return err
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQuotationEmail, Handler: quotationEmail.Handle},
			{Type: jobs.TaskLowStockScan, Handler: lowStock.Handle},
			{Type: jobs.TaskOrderTotalIntegrity, Handler: integrity.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanup.Handle},
			{Type: jobs.TaskDashboardWarmup, Handler: warmup.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		return err
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metricsRouter, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := app.Serve(ctx, metricsServer, logger, 5*time.Second); err != nil {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()

	return worker.Run(ctx)
}
