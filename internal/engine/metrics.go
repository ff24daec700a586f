package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-operation outcome counters and latency histograms.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics builds the engine collectors and registers them on reg. A nil
// registerer leaves the collectors unregistered, which tests use to inspect
// them without touching global state.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "somacore",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Storage engine operations by outcome.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "somacore",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Storage engine operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"op"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.ops, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Observe records one operation outcome.
func (m *Metrics) Observe(op string, err error, elapsed time.Duration) {
	if m == nil || op == "" {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
