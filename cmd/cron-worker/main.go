package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lromero-dev/stockroom-backend/internal/audit"
	"github.com/lromero-dev/stockroom-backend/internal/catalog"
	"github.com/lromero-dev/stockroom-backend/internal/cron"
	"github.com/lromero-dev/stockroom-backend/internal/stockledger"
	"github.com/lromero-dev/stockroom-backend/pkg/config"
	"github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/metrics"
	"github.com/lromero-dev/stockroom-backend/pkg/migrate"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
	"github.com/lromero-dev/stockroom-backend/pkg/redis"
)

const lockKeyFormat = "sr:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	recorder := audit.NewRecorder(dbClient.DB(), logg)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	catalogRepo := catalog.NewRepository(dbClient.DB())

	ledgerService, err := stockledger.NewService(stockledger.Params{
		DB:       dbClient,
		Repo:     stockledger.NewRepository(dbClient.DB()),
		Catalog:  catalogRepo,
		Outbox:   outboxService,
		Recorder: recorder,
		Logg:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock ledger service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.Params{
		DB:       dbClient,
		Repo:     catalogRepo,
		Recorder: recorder,
		Logg:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	staleJob, err := cron.NewStaleInventoryJob(cron.StaleInventoryJobParams{
		Logger:        logg,
		Ledger:        ledgerService,
		Catalog:       catalogService,
		ThresholdDays: cfg.Cron.StaleDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale inventory job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(staleJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
