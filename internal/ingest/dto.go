package ingest

import (
	"time"

	"github.com/logistar/turnover-backend/pkg/db/models"
)

// IngestionWindow bounds one movement-log ingestion.
type IngestionWindow struct {
	From         time.Time
	To           time.Time
	WarehouseID  string
	CustomerCode string
}

// DailySyncResult reports what the scheduled refresh wrote.
type DailySyncResult struct {
	Events   int64 `json:"events"`
	Products int64 `json:"products"`
}

// RunSummary is the API shape of one sync-run audit row.
type RunSummary struct {
	ID            uint       `json:"id"`
	SyncType      string     `json:"sync_type"`
	Status        string     `json:"status"`
	RecordsSynced int64      `json:"records_synced"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// NewRunSummary maps an audit row to its API shape.
func NewRunSummary(run models.SyncRun) RunSummary {
	return RunSummary{
		ID:            run.ID,
		SyncType:      string(run.SyncType),
		Status:        string(run.Status),
		RecordsSynced: run.RecordsSynced,
		ErrorMessage:  run.ErrorMessage,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
}
