package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-smb/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-smb/internal/app"
	"github.com/odyssey-erp/odyssey-smb/internal/dashboard"
	"github.com/odyssey-erp/odyssey-smb/internal/inventory"
	"github.com/odyssey-erp/odyssey-smb/internal/masterdata"
	"github.com/odyssey-erp/odyssey-smb/internal/observability"
	"github.com/odyssey-erp/odyssey-smb/internal/orders"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
	"github.com/odyssey-erp/odyssey-smb/internal/procurement"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
	"github.com/odyssey-erp/odyssey-smb/internal/roles"
	"github.com/odyssey-erp/odyssey-smb/internal/sales/quotations"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
	"github.com/odyssey-erp/odyssey-smb/internal/users"
	"github.com/odyssey-erp/odyssey-smb/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(redisOpts)
		code := jobsCLI.Command(ctx, os.Args[2:], os.Stdout, os.Stderr)
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
		os.Exit(code)
	}

	if err := run(ctx, cfg, logger, redisOpts); err != nil {
		logger.Error("odyssey", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger, redisOpts asynq.RedisClientOpt) error {
	sanityLimit, err := cfg.SanityLimit()
	if err != nil {
		return err
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer dbpool.Close()

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
	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)

	rbacService := rbac.NewService(rbac.NewPostgresStore(dbpool))
	if err := rbacService.SyncCatalogue(ctx, shared.PermissionCatalogue()); err != nil {
		return err
	}
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	masterServices := masterdata.NewServices(dbpool, dashboardCache, logger)

	inventoryService := inventory.NewService(
		inventory.NewRepository(dbpool),
		auditLogger,
		idempotencyStore,
		dashboardCache,
		logger,
		inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock},
	)

	orderService := orders.NewService(orders.NewRepository(dbpool), orders.ServiceDeps{
		Inventory:   inventoryService,
		Audit:       auditLogger,
		Cache:       dashboardCache,
		Observer:    metrics,
		Logger:      logger,
		SanityLimit: sanityLimit,
	})

	procurementService := procurement.NewService(procurement.NewRepository(dbpool), procurement.ServiceDeps{
		History: approvalRecorder,
		Orders:  orderService,
		Audit:   auditLogger,
		Cache:   dashboardCache,
		Logger:  logger,
	})

	quotationService := quotations.NewService(quotations.NewRepository(dbpool), quotations.ServiceDeps{
		Customers: masterServices.Customers,
		Mailer:    jobsClient,
		Orders:    orderService,
		Audit:     auditLogger,
		Cache:     dashboardCache,
		Logger:    logger,
	})

	dashboardService := dashboard.NewService(dashboard.NewRepository(dbpool), inventoryService, dashboardCache, logger)
	usersService := users.NewService(users.NewRepository(dbpool), auditLogger, logger, 0)
	rolesService := roles.NewService(roles.NewRepository(dbpool), rbacService, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Metrics:              metrics,
		MasterDataHandler:    masterdata.NewHandler(logger, masterServices, rbacMiddleware),
		InventoryHandler:     inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		SalesOrderHandler:    orders.NewHandler(logger, orderService, rbacMiddleware, orders.KindSales),
		PurchaseOrderHandler: orders.NewHandler(logger, orderService, rbacMiddleware, orders.KindPurchase),
		QuotationHandler:     quotations.NewHandler(logger, quotationService, rbacMiddleware),
		ProcurementHandler:   procurement.NewHandler(logger, procurementService, rbacMiddleware),
		DashboardHandler:     dashboard.NewHandler(logger, dashboardService, rbacMiddleware),
		UsersHandler:         users.NewHandler(logger, usersService, rbacMiddleware),
		RolesHandler:         roles.NewHandler(logger, rolesService, rbacMiddleware),
		PermissionsHandler:   rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware),
		JobHandler:           jobs.NewHandler(inspector, logger, rbacMiddleware),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	return app.Serve(ctx, server, logger, 10*time.Second)
}
