package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/lromero-dev/stockroom-backend/internal/audit"
	"github.com/lromero-dev/stockroom-backend/internal/catalog"
	"github.com/lromero-dev/stockroom-backend/internal/fulfillment"
	"github.com/lromero-dev/stockroom-backend/internal/reports"
	"github.com/lromero-dev/stockroom-backend/internal/sales"
	"github.com/lromero-dev/stockroom-backend/internal/stockledger"
	"github.com/lromero-dev/stockroom-backend/pkg/cache"
	"github.com/lromero-dev/stockroom-backend/pkg/config"
	"github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/instance"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/migrate"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox/idempotency"
	"github.com/lromero-dev/stockroom-backend/pkg/pubsub"
	"github.com/lromero-dev/stockroom-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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
			logg.Error(context.Background(), "error closing redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	recorder := audit.NewRecorder(dbClient.DB(), logg)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	catalogRepo := catalog.NewRepository(dbClient.DB())
	ledgerRepo := stockledger.NewRepository(dbClient.DB())
	salesRepo := sales.NewRepository(dbClient.DB())

	ledgerService, err := stockledger.NewService(stockledger.Params{
		DB:       dbClient,
		Repo:     ledgerRepo,
		Catalog:  catalogRepo,
		Outbox:   outboxService,
		Recorder: recorder,
		Logg:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock ledger service", err)
		os.Exit(1)
	}

	salesService, err := sales.NewService(sales.Params{
		DB:       dbClient,
		Repo:     salesRepo,
		Catalog:  catalogRepo,
		Ledger:   ledgerService,
		Outbox:   outboxService,
		Recorder: recorder,
		Logg:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sales service", err)
		os.Exit(1)
	}

	idem, err := idempotency.NewManager(redisClient, cfg.Cron.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	fulfillmentConsumer, err := fulfillment.NewConsumer(fulfillment.Params{
		Finalizer:    salesService,
		Subscription: pubsubClient.SalesSubscription(),
		Idempotency:  idem,
		Logg:         logg,
		MaxAttempts:  cfg.Fulfillment.MaxAttempts,
		Backoff:      cfg.Fulfillment.RetryBackoff,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment consumer", err)
		os.Exit(1)
	}

	readCache := cache.New(redisClient, logg)
	invalidationConsumer, err := reports.NewInvalidationConsumer(readCache, pubsubClient.DomainSubscription(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create invalidation consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:               cfg,
		Logger:               logg,
		DB:                   dbClient,
		Redis:                redisClient,
		PubSub:               pubsubClient,
		FulfillmentConsumer:  fulfillmentConsumer,
		InvalidationConsumer: invalidationConsumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
