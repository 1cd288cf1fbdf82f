package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/earthrod-erp/earthrod-erp/internal/app"
	"github.com/earthrod-erp/earthrod-erp/internal/platform/cache"
	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/rawmaterial"
	"github.com/earthrod-erp/earthrod-erp/internal/reporting"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerRepo := stageledger.NewRepository(pool)
	rawRepo := rawmaterial.NewRepository(pool)
	reportingService := reporting.NewService(logger, ledgerRepo, rawRepo, redisClient, cfg.SnapshotCacheTTL)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSnapshotWarmup, Handler: jobs.HandleSnapshotWarmup(logger, reportingService)},
			{Type: jobs.TaskLedgerIntegrity, Handler: jobs.HandleLedgerIntegrity(logger, ledgerRepo)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/5 * * * *", Task: jobs.NewSnapshotWarmupTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
			{Spec: "30 1 * * *", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
