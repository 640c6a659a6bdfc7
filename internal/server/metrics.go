package server

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	ggbexport "github.com/alnah/go-ggbexport"
)

const namespace = "ggbexport"

type metrics struct {
	exports  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, stats func() ggbexport.PoolStats) *metrics {
	factory := promauto.With(reg)

	m := &metrics{
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "export",
				Name:      "total",
				Help:      "Exports by format and outcome.",
			},
			[]string{"format", "outcome"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "export",
				Name:      "duration_seconds",
				Help:      "Export latency in seconds, session wait included.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"format"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"route", "code"},
		),
	}

	if stats != nil {
		poolGauge := func(name, help string, value func(ggbexport.PoolStats) int) {
			factory.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      name,
				Help:      help,
			}, func() float64 { return float64(value(stats())) })
		}
		poolGauge("size", "Pool capacity in sessions.", func(s ggbexport.PoolStats) int { return s.Size })
		poolGauge("sessions_created", "Sessions currently running a browser.", func(s ggbexport.PoolStats) int { return s.Created })
		poolGauge("sessions_idle", "Sessions waiting for a request.", func(s ggbexport.PoolStats) int { return s.Idle })
	}
	return m
}

// observe records one export.
func (m *metrics) observe(f ggbexport.Format, err error, elapsed time.Duration) {
	m.exports.WithLabelValues(string(f), outcome(err)).Inc()
	if err == nil {
		m.latency.WithLabelValues(string(f)).Observe(elapsed.Seconds())
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ggbexport.ErrEmptyDocument):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ggbexport.ErrSVGTimeout):
		return "timeout"
	default:
		return "error"
	}
}
