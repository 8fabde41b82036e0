package signals

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts signal delivery outcomes.
type Metrics struct {
	Sent        *prometheus.CounterVec
	Failed      *prometheus.CounterVec
	Subscribers prometheus.Gauge
}

// NewMetrics registers signal metrics on the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curator"
	}
	return &Metrics{
		Sent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_sent_total",
				Help:      "Signals delivered, by type and channel (push, inbox)",
			},
			[]string{"signal_type", "channel"},
		),
		Failed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signal_failures_total",
				Help:      "Signal delivery failures, by type and channel",
			},
			[]string{"signal_type", "channel"},
		),
		Subscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "signal_subscribers",
				Help:      "Currently connected live subscribers",
			},
		),
	}
}
