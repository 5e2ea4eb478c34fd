package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/itrc/evaluation-workflow/internal/api/rest"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/database"
	"github.com/itrc/evaluation-workflow/internal/metrics"
)

const namespace = "evaluation"

// poolCollector exports pgxpool statistics at scrape time.
type poolCollector struct {
	pool *pgxpool.Pool

	conns    *prometheus.Desc
	maxConns *prometheus.Desc
	acquires *prometheus.Desc
	waitTime *prometheus.Desc
}

func newPoolCollector(pool *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool: pool,
		conns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_connections"),
			"Database connections by state",
			[]string{"state"}, nil),
		maxConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_max_connections"),
			"Maximum database connections",
			nil, nil),
		acquires: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_acquires_total"),
			"Connections acquired from the pool",
			nil, nil),
		waitTime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_acquire_wait_seconds_total"),
			"Time spent waiting for a pool connection",
			nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
	ch <- c.maxConns
	ch <- c.acquires
	ch <- c.waitTime
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.AcquiredConns()), "active")
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.IdleConns()), "idle")
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.TotalConns()), "total")
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.waitTime, prometheus.CounterValue, s.AcquireDuration().Seconds())
}

// registerRuntimeMetrics adds the pool and websocket gauges to reg.
func registerRuntimeMetrics(reg prometheus.Registerer, pool *database.ConnectionPool, hub *rest.EventHub) error {
	if err := reg.Register(newPoolCollector(pool.Pool())); err != nil {
		return err
	}
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "websocket",
		Name:      "connected_clients",
		Help:      "Websocket clients subscribed to workflow events",
	}, func() float64 {
		return float64(hub.ConnectedClients())
	}))
}

// trackPoolSize mirrors the pool size into the OpenTelemetry gauge until ctx
// ends.
func trackPoolSize(ctx context.Context, pool *database.ConnectionPool, m *metrics.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.SetDBPoolSize(int64(pool.Pool().Stat().TotalConns()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
