package enums

// SyncType identifies what a sync run ingested or rebuilt.
type SyncType string

const (
	SyncTypeInventoryLog SyncType = "inventory_log"
	SyncTypeProduct      SyncType = "product"
	SyncTypeRollup       SyncType = "rollup"
	SyncTypeExcelImport  SyncType = "excel_import"
)

// SyncStatus tracks the lifecycle of a sync run.
type SyncStatus string

const (
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s SyncStatus) Terminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusFailed
}
