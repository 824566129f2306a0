package fanout

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shubh-37/multipost-agent/internal/models"
)

const (
	BatchAllSucceeded = "all_succeeded"
	BatchPartial      = "partial"
	BatchAllFailed    = "all_failed"
	BatchTimeout      = "timeout"
)

// Metrics records per-platform and per-batch outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	batchesTotal    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipost_platform_publish_total",
				Help: "Total number of platform publish attempts",
			},
			[]string{"platform", "result"},
		),
		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multipost_platform_publish_duration_seconds",
				Help:    "Platform publish duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"platform"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipost_batches_total",
				Help: "Total number of fan-out batches by status",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(m.publishTotal, m.publishDuration, m.batchesTotal)

	return m
}

func (m *Metrics) observePublish(platform models.PlatformID, success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.publishTotal.WithLabelValues(string(platform), result).Inc()
	m.publishDuration.WithLabelValues(string(platform)).Observe(d.Seconds())
}

func (m *Metrics) observeBatch(status string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(status).Inc()
}

// batchStatus classifies a report for metrics and summaries
func batchStatus(report *models.AggregatedReport) string {
	switch {
	case report.TimedOut:
		return BatchTimeout
	case len(report.Outcomes) > 0 && report.SuccessCount == len(report.Outcomes):
		return BatchAllSucceeded
	case report.SuccessCount > 0:
		return BatchPartial
	default:
		return BatchAllFailed
	}
}
