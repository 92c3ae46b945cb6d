package pgpool

import (
	"github.com/jackc/puddle/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// poolMetrics mirrors the gauge/histogram set mevdschee-tqdbproxy and
// packetd-packetd expose for their own connection-handling hot paths
// (reference corpus), adapted to puddle's Stat snapshot plus a
// self-tracked waiter gauge (puddle itself reports cumulative acquire
// counters, not a live in-flight-waiter count).
type poolMetrics struct {
	idle        prometheus.Gauge
	inUse       prometheus.Gauge
	total       prometheus.Gauge
	waiters     prometheus.Gauge
	acquireWait prometheus.Histogram
}

func newPoolMetrics() poolMetrics {
	return poolMetrics{
		idle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pgwire",
			Subsystem: "pool",
			Name:      "idle_connections",
			Help:      "Number of idle connections currently held by the pool.",
		}),
		inUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pgwire",
			Subsystem: "pool",
			Name:      "in_use_connections",
			Help:      "Number of connections currently acquired by callers.",
		}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pgwire",
			Subsystem: "pool",
			Name:      "total_connections",
			Help:      "Total connections currently owned by the pool (idle + in use).",
		}),
		waiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pgwire",
			Subsystem: "pool",
			Name:      "acquire_waiters",
			Help:      "Number of callers currently blocked in Acquire.",
		}),
		acquireWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pgwire",
			Subsystem: "pool",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent blocked in Acquire before a connection was returned.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *poolMetrics) observeStat(stat *puddle.Stat) {
	m.idle.Set(float64(stat.IdleResources()))
	m.inUse.Set(float64(stat.AcquiredResources()))
	m.total.Set(float64(stat.TotalResources()))
}

func (m *poolMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.idle, m.inUse, m.total, m.waiters, m.acquireWait}
}
