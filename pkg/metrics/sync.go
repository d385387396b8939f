package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records ingestion, rollup and cache activity.
type SyncMetrics struct {
	runs          *prometheus.CounterVec
	records       *prometheus.CounterVec
	fetchPages    *prometheus.CounterVec
	rollupSeconds prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Sync runs by type and terminal status.",
	}, []string{"type", "status"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_total",
		Help: "Records written by sync runs.",
	}, []string{"type"})
	fetchPages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wms_fetch_pages_total",
		Help: "Pages fetched from the upstream WMS API.",
	}, []string{"service"})
	rollupSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rollup_rebuild_seconds",
		Help:    "Duration of full daily-summary rebuilds in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_lookups_total",
		Help: "Analytics query cache lookups by outcome.",
	}, []string{"result"})
	reg.MustRegister(runs, records, fetchPages, rollupSeconds, cacheLookups)
	return &SyncMetrics{
		runs:          runs,
		records:       records,
		fetchPages:    fetchPages,
		rollupSeconds: rollupSeconds,
		cacheLookups:  cacheLookups,
	}
}

// ObserveRun counts one finished run.
func (s *SyncMetrics) ObserveRun(syncType, status string) {
	if s == nil || s.runs == nil {
		return
	}
	s.runs.WithLabelValues(normalizeLabel(syncType), normalizeLabel(status)).Inc()
}

// AddRecords counts records written by the given run type.
func (s *SyncMetrics) AddRecords(syncType string, n int64) {
	if s == nil || s.records == nil || n <= 0 {
		return
	}
	s.records.WithLabelValues(normalizeLabel(syncType)).Add(float64(n))
}

// IncFetchPage counts one fetched upstream page.
func (s *SyncMetrics) IncFetchPage(service string) {
	if s == nil || s.fetchPages == nil {
		return
	}
	s.fetchPages.WithLabelValues(normalizeLabel(service)).Inc()
}

// ObserveRollup records a rebuild duration.
func (s *SyncMetrics) ObserveRollup(duration time.Duration) {
	if s == nil || s.rollupSeconds == nil {
		return
	}
	s.rollupSeconds.Observe(duration.Seconds())
}

// IncCacheHit counts a query cache hit.
func (s *SyncMetrics) IncCacheHit() {
	if s == nil || s.cacheLookups == nil {
		return
	}
	s.cacheLookups.WithLabelValues("hit").Inc()
}

// IncCacheMiss counts a query cache miss.
func (s *SyncMetrics) IncCacheMiss() {
	if s == nil || s.cacheLookups == nil {
		return
	}
	s.cacheLookups.WithLabelValues("miss").Inc()
}
