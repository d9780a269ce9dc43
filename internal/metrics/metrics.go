// Package metrics collects Prometheus metrics for payment verification.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	outcomes     *prometheus.CounterVec
	activePolls  prometheus.Gauge
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_fetches_total",
			Help:      "Payment status requests to the gateway by order kind and result.",
		}, []string{"kind", "result"}),
		fetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "status_fetch_seconds",
			Help:      "Payment status request latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Finished verifications by order kind and outcome.",
		}, []string{"kind", "outcome"}),
		activePolls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_polls",
			Help:      "Verifications currently polling the gateway.",
		}),
	}
}

func (m *Metrics) ObserveFetch(kind string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(kind, result).Inc()
	m.fetchLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveOutcome counts a finished verification. outcome is one of PAID,
// FAILED, PENDING (ceiling reached), ERROR or CANCELED.
func (m *Metrics) ObserveOutcome(kind string, outcome string) {
	m.outcomes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) PollStarted()  { m.activePolls.Inc() }
func (m *Metrics) PollFinished() { m.activePolls.Dec() }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
