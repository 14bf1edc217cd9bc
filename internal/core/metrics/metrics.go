// Package metrics exposes Prometheus collectors for the data-access layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionAttempts tracks connect probes by result ("success", "failure")
	ConnectionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandsphere_db_connection_attempts_total",
			Help: "Total number of database connection attempts",
		},
		[]string{"result"},
	)

	// QueriesTotal tracks executed queries by result ("success", "failure")
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandsphere_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"result"},
	)

	// SlowQueries counts queries slower than the configured threshold
	SlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brandsphere_db_slow_queries_total",
			Help: "Total number of slow database queries",
		},
	)

	// QueryDuration tracks query latency per operation label
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandsphere_db_query_duration_seconds",
			Help:    "Database query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"label"},
	)

	// RetriesTotal counts retried operations per label
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandsphere_db_retries_total",
			Help: "Total number of retried database operations",
		},
		[]string{"label"},
	)

	// HealthStatus is 0 when healthy, 1 when degraded and 2 when unhealthy
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brandsphere_db_health_status",
			Help: "Database health status (0 healthy, 1 degraded, 2 unhealthy)",
		},
	)

	// PoolUsage is the share of the connection pool in use
	PoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brandsphere_db_pool_usage_percent",
			Help: "Open connections as a percentage of the pool limit",
		},
	)

	// StartupCheckSuccess is 1 when the named boot check passed
	StartupCheckSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brandsphere_startup_check_success",
			Help: "Result of the last startup check run (1 passed, 0 failed)",
		},
		[]string{"check"},
	)
)
