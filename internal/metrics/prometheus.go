package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/devrev/hotcache/internal/model"
)

// Metrics holds all Prometheus metrics for the hot-key cache
type Metrics struct {
	// Promote path metrics
	PromotionsTotal        prometheus.Counter
	PromotionsSkippedTotal prometheus.Counter
	PromoteDuration        prometheus.Histogram
	PromotedValueBytes     prometheus.Histogram

	// Update path metrics
	UpdatesTotal      prometheus.Counter
	UpdateHitsTotal   prometheus.Counter
	UpdateMissesTotal prometheus.Counter
	UpdateDuration    prometheus.Histogram
	DeletesTotal      prometheus.Counter

	// Cache state metrics
	CacheSizeBytes       prometheus.Gauge
	CacheEntriesTotal    prometheus.Gauge
	CacheTombstonesTotal prometheus.Gauge
	CacheHitRatio        prometheus.Gauge

	// System metrics
	MemoryUsageBytes prometheus.Gauge
	GoroutinesTotal  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(nodeID string) *Metrics {
	labels := prometheus.Labels{"node_id": nodeID}

	return &Metrics{
		// Promote path metrics
		PromotionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "hotcache",
			Subsystem:   "promote",
			Name:        "promotions_total",
			Help:        "Total number of compaction promotions attempted",
			ConstLabels: labels,
		}),
		PromotionsSkippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "hotcache",
			Subsystem:   "promote",
			Name:        "promotions_skipped_total",
			Help:        "Promotions skipped because the key was already cached",
			ConstLabels: labels,
		}),
		PromoteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "hotcache",
			Subsystem:   "promote",
			Name:        "duration_seconds",
			Help:        "Histogram of promotion durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		PromotedValueBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "hotcache",
			Subsystem:   "promote",
			Name:        "value_bytes",
			Help:        "Histogram of promoted value sizes in bytes",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(16, 2, 12), // 16B to 32KB
		}),

		// Update path metrics
		UpdatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "hotcache",
			Subsystem:   "update",
			Name:        "requests_total",
			Help:        "Total number of update attempts (puts)",
			ConstLabels: labels,
		}),
		UpdateHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "hotcache",
			Subsystem:   "update",
			Name:        "hits_total",
			Help:        "Update attempts that found their key cached",
			ConstLabels: labels,
		}),
		UpdateMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "hotcache",
			Subsystem:   "update",
			Name:        "misses_total",
			Help:        "Update attempts that missed the cache",
			ConstLabels: labels,
		}),
		UpdateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "hotcache",
			Subsystem:   "update",
			Name:        "duration_seconds",
			Help:        "Histogram of update durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		DeletesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "hotcache",
			Subsystem:   "update",
			Name:        "deletes_total",
			Help:        "Updates that wrote a tombstone",
			ConstLabels: labels,
		}),

		// Cache state metrics
		CacheSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "hotcache",
			Subsystem:   "cache",
			Name:        "size_bytes",
			Help:        "Bytes held by live cached entries",
			ConstLabels: labels,
		}),
		CacheEntriesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "hotcache",
			Subsystem:   "cache",
			Name:        "entries_total",
			Help:        "Nodes linked into the ordered index",
			ConstLabels: labels,
		}),
		CacheTombstonesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "hotcache",
			Subsystem:   "cache",
			Name:        "tombstones_total",
			Help:        "Entries currently in the deleted state",
			ConstLabels: labels,
		}),
		CacheHitRatio: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "hotcache",
			Subsystem:   "cache",
			Name:        "hit_ratio",
			Help:        "Update hits divided by update attempts",
			ConstLabels: labels,
		}),

		// System metrics
		MemoryUsageBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "hotcache",
			Subsystem:   "system",
			Name:        "memory_usage_bytes",
			Help:        "Process heap allocation in bytes",
			ConstLabels: labels,
		}),
		GoroutinesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "hotcache",
			Subsystem:   "system",
			Name:        "goroutines_total",
			Help:        "Number of running goroutines",
			ConstLabels: labels,
		}),
	}
}

// UpdateCacheStats pushes a cache stats snapshot into the state gauges
func (m *Metrics) UpdateCacheStats(stats model.CacheStats) {
	m.CacheSizeBytes.Set(float64(stats.Bytes))
	m.CacheEntriesTotal.Set(float64(stats.Entries))
	m.CacheTombstonesTotal.Set(float64(stats.Tombstones))
	m.CacheHitRatio.Set(stats.HitRatio())
}

// UpdateSystemStats updates system-level metrics
func (m *Metrics) UpdateSystemStats(memoryBytes int64, goroutines int) {
	m.MemoryUsageBytes.Set(float64(memoryBytes))
	m.GoroutinesTotal.Set(float64(goroutines))
}
