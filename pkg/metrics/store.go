package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// initStoreMetrics initializes storage metrics.
func (m *Manager) initStoreMetrics(cfg Config) {
	m.storeOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_store_operations_total",
			Help: "Total number of store operations by type and status",
		},
		[]string{"operation", "status"},
	)

	m.entriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_entries_total",
			Help: "Current number of stored memory entries",
		},
	)

	m.cacheHitRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_l1_cache_hit_rate",
			Help: "L1 cache hit rate (0.0-1.0)",
		},
	)

	m.registry.MustRegister(m.storeOperations)
	m.registry.MustRegister(m.entriesTotal)
	m.registry.MustRegister(m.cacheHitRate)
}

// RecordStoreOperation records a store operation (memorize, forget, ...).
func (m *Manager) RecordStoreOperation(operation, status string) {
	if !m.enabled {
		return
	}
	m.storeOperations.WithLabelValues(operation, status).Inc()
}

// SetEntriesTotal sets the current entry count.
func (m *Manager) SetEntriesTotal(count float64) {
	if !m.enabled {
		return
	}
	m.entriesTotal.Set(count)
}

// SetCacheHitRate sets the current L1 cache hit rate.
func (m *Manager) SetCacheHitRate(rate float64) {
	if !m.enabled {
		return
	}
	m.cacheHitRate.Set(rate)
}
