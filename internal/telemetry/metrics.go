package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the tenant router.
type Metrics struct {
	// Resolver metrics
	ResolutionsTotal  *prometheus.CounterVec // outcome: ok, not_found, authorization, resolution, error
	ResolverCacheHits prometheus.Counter
	ResolverCacheMiss prometheus.Counter

	// Executor metrics
	QueriesTotal         *prometheus.CounterVec // outcome: ok, query_error, schema_switch, pool_exhausted
	QueryDuration        prometheus.Histogram
	ConnectionsDiscarded prometheus.Counter

	// Auditor metrics
	AuditWritesTotal  prometheus.Counter
	AuditDroppedTotal prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Get returns the singleton Metrics instance, initializing it if
// necessary.
func Get() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	return &Metrics{
		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantdb",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of schema resolutions by outcome.",
		}, []string{"outcome"}),
		ResolverCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantdb",
			Subsystem: "resolver",
			Name:      "cache_hits_total",
			Help:      "Total number of resolver cache hits.",
		}),
		ResolverCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantdb",
			Subsystem: "resolver",
			Name:      "cache_misses_total",
			Help:      "Total number of resolver cache misses.",
		}),
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantdb",
			Subsystem: "executor",
			Name:      "queries_total",
			Help:      "Total number of tenant-scoped queries by outcome.",
		}, []string{"outcome"}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tenantdb",
			Subsystem: "executor",
			Name:      "query_duration_seconds",
			Help:      "Duration of tenant-scoped queries including schema switch.",
			Buckets:   prometheus.DefBuckets,
		}),
		ConnectionsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantdb",
			Subsystem: "executor",
			Name:      "connections_discarded_total",
			Help:      "Connections closed instead of pooled because the search path could not be reset.",
		}),
		AuditWritesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantdb",
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Total number of cross-tenant access audit records written.",
		}),
		AuditDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantdb",
			Subsystem: "audit",
			Name:      "dropped_total",
			Help:      "Audit records dropped after retry.",
		}),
	}
}
