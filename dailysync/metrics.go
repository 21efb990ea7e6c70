package dailysync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess      = "success"
	resultFailed       = "failed"
	resultSkipped      = "skipped"
	resultExportFailed = "export_failed"
)

// Metrics lives on its own registry so tests and the /metrics handler see only these series.
type Metrics struct {
	Registry *prometheus.Registry

	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	LastSuccess prometheus.Gauge
	Subscribers prometheus.Gauge
	Broadcasts  prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ckreport_sync_runs_total",
				Help: "Daily sync invocations by result",
			},
			[]string{"result"}, // success, failed, skipped, export_failed
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ckreport_sync_duration_seconds",
			Help:    "Wall time of a daily sync run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ckreport_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last run that wrote both tables",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ckreport_subscribers_total",
			Help: "total_subscribers from the last appended growth row",
		}),
		Broadcasts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ckreport_broadcasts_written",
			Help: "Rows written to the broadcast table by the last run",
		}),
	}
	m.Registry.MustRegister(m.Runs, m.RunDuration, m.LastSuccess, m.Subscribers, m.Broadcasts)
	return m
}

func (m *Metrics) observe(result string, started, finished time.Time) {
	m.Runs.WithLabelValues(result).Inc()
	m.RunDuration.Observe(finished.Sub(started).Seconds())
}
