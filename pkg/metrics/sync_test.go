package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSyncMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSyncMetrics(reg)

	metrics.ObserveRun("inventory_log", "success")
	metrics.AddRecords("inventory_log", 500)
	metrics.IncFetchPage("getInventoryLog")
	metrics.ObserveRollup(1200 * time.Millisecond)
	metrics.IncCacheHit()
	metrics.IncCacheMiss()
	metrics.IncCacheMiss()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "sync_runs_total", "type", "inventory_log"); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected runs=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "sync_records_total", "type", "inventory_log"); err != nil {
		t.Fatalf("fetch records: %v", err)
	} else if got != 500 {
		t.Fatalf("expected records=500, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "query_cache_lookups_total", "result", "miss"); err != nil {
		t.Fatalf("fetch misses: %v", err)
	} else if got != 2 {
		t.Fatalf("expected misses=2, got %f", got)
	}

	if mf := findMetricFamily(mfs, "rollup_rebuild_seconds"); mf == nil {
		t.Fatal("expected rollup histogram to be registered")
	}
}

func TestSyncMetricsNilSafe(t *testing.T) {
	var metrics *SyncMetrics
	metrics.ObserveRun("product", "failed")
	metrics.AddRecords("product", 1)
	metrics.IncCacheHit()

	empty := NewSyncMetrics(nil)
	empty.ObserveRollup(time.Second)
	empty.IncCacheMiss()
}
