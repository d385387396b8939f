package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/logistar/turnover-backend/api/routes"
	"github.com/logistar/turnover-backend/internal/analytics"
	"github.com/logistar/turnover-backend/internal/importer"
	"github.com/logistar/turnover-backend/internal/ingest"
	"github.com/logistar/turnover-backend/internal/rollup"
	"github.com/logistar/turnover-backend/internal/warehouses"
	"github.com/logistar/turnover-backend/internal/wms"
	"github.com/logistar/turnover-backend/pkg/cache"
	"github.com/logistar/turnover-backend/pkg/config"
	"github.com/logistar/turnover-backend/pkg/db"
	"github.com/logistar/turnover-backend/pkg/logger"
	"github.com/logistar/turnover-backend/pkg/metrics"
	"github.com/logistar/turnover-backend/pkg/migrate"
	"github.com/logistar/turnover-backend/pkg/redis"
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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	directory, err := cfg.Warehouses.Map()
	if err != nil {
		logg.Error(context.Background(), "failed to parse warehouse directory", err)
		os.Exit(1)
	}
	normalizer, err := buildNormalizer(logg, cfg.WMS.Timezone, directory)
	if err != nil {
		logg.Error(context.Background(), "failed to build normalizer", err)
		os.Exit(1)
	}

	wmsClient, err := wms.NewClient(cfg.WMS, logg, syncMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create wms client", err)
		os.Exit(1)
	}

	queryCache, err := cache.New(cache.Params{Store: redisClient, Logger: logg, TTL: cfg.Cache.TTL})
	if err != nil {
		logg.Error(context.Background(), "failed to create query cache", err)
		os.Exit(1)
	}

	ingestRepo := ingest.NewRepository(dbClient.DB())

	rollupService, err := rollup.NewService(rollup.ServiceParams{
		Logger:  logg,
		DB:      dbClient,
		Runs:    ingestRepo,
		Cache:   queryCache,
		Metrics: syncMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rollup service", err)
		os.Exit(1)
	}

	ingestService, err := ingest.NewService(ingest.ServiceParams{
		Logger:          logg,
		DB:              dbClient,
		Repo:            ingestRepo,
		Fetcher:         wmsClient,
		Normalizer:      normalizer,
		Rollup:          rollupService,
		Metrics:         syncMetrics,
		BatchSize:       cfg.Sync.BatchSize,
		DailyWindowDays: cfg.Sync.DailyWindowDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ingest service", err)
		os.Exit(1)
	}

	importService, err := importer.NewService(importer.ServiceParams{
		Logger:     logg,
		DB:         dbClient,
		Repo:       ingestRepo,
		Normalizer: normalizer,
		Rollup:     rollupService,
		Metrics:    syncMetrics,
		BatchSize:  cfg.Sync.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create import service", err)
		os.Exit(1)
	}

	analyticsService, err := analytics.NewService(analytics.ServiceParams{
		Logger:         logg,
		Repo:           analytics.NewRepository(dbClient.DB()),
		Cache:          queryCache,
		Metrics:        syncMetrics,
		WarehouseNames: warehouseNames(directory),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	warehouseService, err := warehouses.NewService(warehouses.ServiceParams{
		Logger:    logg,
		DB:        dbClient.DB(),
		Directory: directory,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create warehouse service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Ingest:     ingestService,
			Rollup:     rollupService,
			Importer:   importService,
			Analytics:  analyticsService,
			Warehouses: warehouseService,
			Registry:   registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildNormalizer resolves the source timezone and every configured warehouse
// timezone. A warehouse with a broken zone name keeps the source zone.
func buildNormalizer(logg *logger.Logger, sourceTZ string, directory map[string]config.WarehouseInfo) (*ingest.Normalizer, error) {
	source, err := time.LoadLocation(sourceTZ)
	if err != nil {
		return nil, err
	}
	zones := map[string]*time.Location{}
	for id, info := range directory {
		if info.Timezone == "" {
			continue
		}
		loc, err := time.LoadLocation(info.Timezone)
		if err != nil {
			logg.Warn(logg.WithField(context.Background(), "warehouse_id", id), "unknown warehouse timezone, keeping source zone")
			continue
		}
		zones[id] = loc
	}
	return ingest.NewNormalizer(source, zones), nil
}

func warehouseNames(directory map[string]config.WarehouseInfo) map[string]string {
	names := make(map[string]string, len(directory))
	for id, info := range directory {
		names[id] = info.Name
	}
	return names
}
