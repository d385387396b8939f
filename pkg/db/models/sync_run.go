package models

import (
	"time"

	"github.com/logistar/turnover-backend/pkg/enums"
)

// SyncRun is the audit record for one ingestion, rollup or import attempt.
// A run is finalized exactly once; terminal rows are never rewritten.
type SyncRun struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement"`

	SyncType enums.SyncType   `gorm:"column:sync_type;not null;index"`
	Status   enums.SyncStatus `gorm:"column:status;not null;index"`

	RecordsSynced int64  `gorm:"column:records_synced;not null;default:0"`
	ErrorMessage  string `gorm:"column:error_message"`

	StartedAt  time.Time  `gorm:"column:started_at;not null"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
}

func (SyncRun) TableName() string { return "sync_runs" }
