package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dbConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pgxpool",
			Name:      "connections",
			Help:      "Current number of connections in the pool",
		},
		[]string{"state"},
	)

	dbMaxConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pgxpool",
			Name:      "max_conns",
			Help:      "Maximum number of connections in the pool",
		},
	)

	dbAcquireCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pgxpool",
			Name:      "acquire_count",
			Help:      "Total number of connection acquisitions",
		},
	)
)

// collectPoolMetrics samples the connection pool stats for /metrics until
// the context ends
func collectPoolMetrics(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	var lastAcquires int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := pool.Stat()
			dbConnections.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
			dbConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
			dbConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
			dbMaxConnections.Set(float64(stat.MaxConns()))

			if delta := stat.AcquireCount() - lastAcquires; delta > 0 {
				dbAcquireCount.Add(float64(delta))
				lastAcquires = stat.AcquireCount()
			}
		}
	}
}
