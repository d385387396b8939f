package cron

import (
	"context"
	"fmt"

	"github.com/logistar/turnover-backend/internal/ingest"
	"github.com/logistar/turnover-backend/pkg/logger"
)

type dailySyncRunner interface {
	RunDailySync(ctx context.Context) (ingest.DailySyncResult, error)
}

// DailySyncJobParams configure the daily sync job.
type DailySyncJobParams struct {
	Logger *logger.Logger
	Ingest dailySyncRunner
}

// NewDailySyncJob builds the job that re-ingests the trailing movement window
// and refreshes the product catalog once per cycle.
func NewDailySyncJob(params DailySyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ingest == nil {
		return nil, fmt.Errorf("ingest service required")
	}
	return &dailySyncJob{
		logg:   params.Logger,
		ingest: params.Ingest,
	}, nil
}

type dailySyncJob struct {
	logg   *logger.Logger
	ingest dailySyncRunner
}

func (j *dailySyncJob) Name() string { return "daily-sync" }

func (j *dailySyncJob) Run(ctx context.Context) error {
	result, err := j.ingest.RunDailySync(ctx)
	if err != nil {
		return fmt.Errorf("daily sync: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"events":   result.Events,
		"products": result.Products,
	})
	j.logg.Info(logCtx, "daily sync complete")
	return nil
}
