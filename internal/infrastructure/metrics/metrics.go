// Package metrics exposes prometheus collectors for the cache and repositories.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stockroom"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions *prometheus.CounterVec
	repoOps        *prometheus.CounterVec
	repoDuration   *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that ran the factory.",
		}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted by the cache itself.",
		}, []string{"reason"}),
		repoOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "operations_total",
			Help:      "Repository operations by entity, operation and outcome.",
		}, []string{"entity", "operation", "outcome"}),
		repoDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "operation_duration_seconds",
			Help:      "Repository operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "operation"}),
	}

	reg.MustRegister(m.cacheHits, m.cacheMisses, m.cacheEvictions, m.repoOps, m.repoDuration)
	return m
}

// CacheHit implements cache.Recorder.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// CacheMiss implements cache.Recorder.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// CacheEviction implements cache.Recorder.
func (m *Metrics) CacheEviction(reason string) {
	if m == nil {
		return
	}
	m.cacheEvictions.WithLabelValues(reason).Inc()
}

// ObserveOperation implements repository.Recorder.
func (m *Metrics) ObserveOperation(entity, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.repoOps.WithLabelValues(entity, operation, outcome).Inc()
	m.repoDuration.WithLabelValues(entity, operation).Observe(elapsed.Seconds())
}
