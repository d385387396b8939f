package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/logistar/turnover-backend/internal/cron"
	"github.com/logistar/turnover-backend/internal/ingest"
	"github.com/logistar/turnover-backend/internal/rollup"
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
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	cronMetrics := metrics.NewCronJobMetrics(registry)

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

	dailySyncJob, err := cron.NewDailySyncJob(cron.DailySyncJobParams{
		Logger: logg,
		Ingest: ingestService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create daily sync job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(dailySyncJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Sync.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
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
