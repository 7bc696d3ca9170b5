package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gastrodesk/gastrodesk/internal/app"
	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
	"github.com/gastrodesk/gastrodesk/internal/platform/db"
	"github.com/gastrodesk/gastrodesk/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, nil, logger, catalog.ServiceConfig{
		MatchThreshold: cfg.MatchThreshold,
	})
	dlcRepo := dlc.NewRepository(pool)
	dlcService := dlc.NewService(dlcRepo, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: &jobs.Handlers{
			Logger:  logger,
			DLC:     dlcService,
			Catalog: catalogService,
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DLCSweepSchedule, Task: jobs.NewDLCExpireTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.LowStockScanSchedule, Task: jobs.NewLowStockScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
