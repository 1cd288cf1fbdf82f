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

	"github.com/earthrod-erp/earthrod-erp/internal/allocation"
	"github.com/earthrod-erp/earthrod-erp/internal/app"
	"github.com/earthrod-erp/earthrod-erp/internal/catalog"
	"github.com/earthrod-erp/earthrod-erp/internal/jobwork"
	"github.com/earthrod-erp/earthrod-erp/internal/observability"
	"github.com/earthrod-erp/earthrod-erp/internal/platform/cache"
	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/rawmaterial"
	"github.com/earthrod-erp/earthrod-erp/internal/reporting"
	"github.com/earthrod-erp/earthrod-erp/internal/sales"
	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/earthrod-erp/earthrod-erp/internal/shipment"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
	"github.com/earthrod-erp/earthrod-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, logger); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The snapshot cache degrades to fresh reads without redis.
		logger.Warn("connect redis", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	rawRepo := rawmaterial.NewRepository(pool)
	rawService := rawmaterial.NewService(rawRepo, auditLogger)
	rawHandler := rawmaterial.NewHandler(logger, rawService)

	ledgerRepo := stageledger.NewRepository(pool)
	ledgerService := stageledger.NewService(ledgerRepo, auditLogger, cfg.ChargingStage)
	ledgerHandler := stageledger.NewHandler(logger, ledgerService)

	allocationRepo := allocation.NewRepository(pool)
	allocationService := allocation.NewService(allocationRepo, auditLogger)
	allocationHandler := allocation.NewHandler(logger, allocationService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, auditLogger)
	salesHandler := sales.NewHandler(logger, salesService)

	shipmentRepo := shipment.NewRepository(pool)
	shipmentService := shipment.NewService(shipmentRepo, auditLogger, idempotencyStore)
	shipmentHandler := shipment.NewHandler(logger, shipmentService)

	jobworkRepo := jobwork.NewRepository(pool)
	jobworkService := jobwork.NewService(jobworkRepo, auditLogger, idempotencyStore, cfg.JobworkReceiveStage)
	jobworkHandler := jobwork.NewHandler(logger, jobworkService)

	reportingService := reporting.NewService(logger, ledgerRepo, rawRepo, redisClient, cfg.SnapshotCacheTTL)
	reportingHandler := reporting.NewHandler(logger, reportingService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		Metrics:     metrics,
		Catalog:     catalogHandler,
		RawMaterial: rawHandler,
		StageLedger: ledgerHandler,
		Allocation:  allocationHandler,
		Sales:       salesHandler,
		Shipment:    shipmentHandler,
		Jobwork:     jobworkHandler,
		Reporting:   reportingHandler,
		Jobs:        jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
