package bus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LabelType labels published events by type.
const LabelType = "type"

// Metrics provides Prometheus metrics for the event bus.
type Metrics struct {
	publishTotal     *prometheus.CounterVec
	droppedTotal     prometheus.Counter
	reconcileEmits   prometheus.Counter
	subscribersGauge prometheus.Gauge

	registered bool
}

// NewMetrics creates and registers event bus metrics.
// If registry is nil, metrics are created but not registered
// (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "podium",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of events published to the bus",
			},
			[]string{LabelType},
		),

		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "podium",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Total number of events dropped from full subscriber queues",
			},
		),

		reconcileEmits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "podium",
				Subsystem: "events",
				Name:      "reconcile_emits_total",
				Help:      "Lock state events emitted by the reconciler",
			},
		),

		subscribersGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "podium",
				Subsystem: "events",
				Name:      "subscribers",
				Help:      "Number of active event subscriptions",
			},
		),
	}

	// Register with registry if provided
	if registry != nil {
		registry.MustRegister(
			m.publishTotal,
			m.droppedTotal,
			m.reconcileEmits,
			m.subscribersGauge,
		)
		m.registered = true
	}

	return m
}

// ObservePublish records a published event.
func (m *Metrics) ObservePublish(eventType string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(eventType).Inc()
}

// ObserveDrop records an event dropped from a full queue.
func (m *Metrics) ObserveDrop() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}

// ObserveReconcileEmit records a reconciler-driven lock state event.
func (m *Metrics) ObserveReconcileEmit() {
	if m == nil {
		return
	}
	m.reconcileEmits.Inc()
}

// SetSubscribers sets the number of active subscriptions.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribersGauge.Set(float64(n))
}
