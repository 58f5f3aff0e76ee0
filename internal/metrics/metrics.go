// Package metrics exposes the per-service prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsConsumed   *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_events_consumed_total",
			Help: "Deliveries taken off a queue, by outcome.",
		}, []string{"queue", "outcome"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_events_published_total",
			Help: "Envelopes published, by routing key.",
		}, []string{"routing_key"}),
		DispatchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_dispatch_failures_total",
			Help: "Dispatches that returned an error, by event type.",
		}, []string{"type"}),
	}
}

// Consumed implements the dispatch loop's MetricsRecorder.
func (m *Metrics) Consumed(queue, outcome string) {
	m.EventsConsumed.WithLabelValues(queue, outcome).Inc()
}

// DispatchFailed implements the dispatch loop's MetricsRecorder.
func (m *Metrics) DispatchFailed(eventType string) {
	m.DispatchFailures.WithLabelValues(eventType).Inc()
}
