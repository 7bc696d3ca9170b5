package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gastrodesk/gastrodesk/internal/app"
	"github.com/gastrodesk/gastrodesk/internal/bills"
	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/disputes"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
	"github.com/gastrodesk/gastrodesk/internal/ledger"
	"github.com/gastrodesk/gastrodesk/internal/platform/cache"
	"github.com/gastrodesk/gastrodesk/internal/platform/db"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, search caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogRepo := catalog.NewRepository(pool)
	catalogCache := catalog.NewCache(redisClient, cfg.SearchCacheTTL)
	catalogService := catalog.NewService(catalogRepo, catalogCache, logger, catalog.ServiceConfig{
		MatchThreshold: cfg.MatchThreshold,
	})

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, catalogRepo, logger)

	dlcRepo := dlc.NewRepository(pool)
	dlcService := dlc.NewService(dlcRepo, logger)

	disputeRepo := disputes.NewRepository(pool)
	disputeService := disputes.NewService(disputeRepo, logger)

	billRepo := bills.NewRepository(pool)
	billService := bills.NewService(billRepo, catalogService, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		BillHandler:    bills.NewHandler(logger, billService),
		CatalogHandler: catalog.NewHandler(logger, catalogService),
		LedgerHandler:  ledger.NewHandler(logger, ledgerService),
		DisputeHandler: disputes.NewHandler(logger, disputeService),
		DLCHandler:     dlc.NewHandler(logger, dlcService),
		Pool:           pool,
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
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
