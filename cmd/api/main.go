package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/lromero-dev/stockroom-backend/api/routes"
	"github.com/lromero-dev/stockroom-backend/internal/audit"
	"github.com/lromero-dev/stockroom-backend/internal/catalog"
	"github.com/lromero-dev/stockroom-backend/internal/reports"
	"github.com/lromero-dev/stockroom-backend/internal/sales"
	"github.com/lromero-dev/stockroom-backend/internal/stockledger"
	"github.com/lromero-dev/stockroom-backend/pkg/cache"
	"github.com/lromero-dev/stockroom-backend/pkg/config"
	"github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/migrate"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
	"github.com/lromero-dev/stockroom-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	salesService, err := sales.NewService(sales.Params{
		DB:       dbClient,
		Repo:     sales.NewRepository(dbClient.DB()),
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

	reportsService, err := reports.NewService(reports.Params{
		DB:           dbClient.DB(),
		Cache:        cache.New(redisClient, logg),
		InventoryTTL: cfg.Cache.InventoryTTL,
		ReportTTL:    cfg.Cache.ReportTTL,
		Logg:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reports service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			catalogService,
			ledgerService,
			salesService,
			reportsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
