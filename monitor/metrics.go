package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles refresh metrics.
type Metrics struct {
	Registry        *prometheus.Registry
	RefreshTotal    *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	MonitorsByState *prometheus.GaugeVec
	RejectedEntries prometheus.Counter
	QuotaRemaining  prometheus.Gauge
}

// NewMetrics constructs metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptime_status_refresh_total",
				Help: "Refresh requests by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uptime_status_upstream_fetch_duration_seconds",
			Help:    "Upstream getMonitors duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		MonitorsByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_status_monitors",
				Help: "Monitors in the current snapshot by status",
			},
			[]string{"status"},
		),
		RejectedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uptime_status_rejected_log_entries_total",
			Help: "Upstream log entries dropped during normalization",
		}),
		QuotaRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uptime_status_quota_remaining",
			Help: "Upstream requests left in the current rate-limit window",
		}),
	}
	m.Registry.MustRegister(
		m.RefreshTotal,
		m.FetchDuration,
		m.MonitorsByState,
		m.RejectedEntries,
		m.QuotaRemaining,
	)
	return m
}

const (
	outcomeFetched     = "fetched"
	outcomeFake        = "fake"
	outcomeRateLimited = "rate_limited"
	outcomeError       = "error"
)
