package semaphore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelStatus = "status"
	LabelReason = "reason"
)

// Status constants for acquire attempts.
const (
	StatusAcquired = "acquired"
	StatusHeld     = "held"
	StatusDisabled = "disabled"
)

// Metrics provides Prometheus metrics for the writer lock.
type Metrics struct {
	acquireTotal *prometheus.CounterVec
	releaseTotal *prometheus.CounterVec

	heldGauge    prometheus.Gauge
	enabledGauge prometheus.Gauge

	holdDuration prometheus.Histogram

	registered bool
}

// NewMetrics creates and registers writer lock metrics.
// If registry is nil, metrics are created but not registered
// (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "podium",
				Subsystem: "writer_lock",
				Name:      "acquire_total",
				Help:      "Total number of writer lock acquire attempts",
			},
			[]string{LabelStatus},
		),

		releaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "podium",
				Subsystem: "writer_lock",
				Name:      "release_total",
				Help:      "Total number of writer lock releases",
			},
			[]string{LabelReason},
		),

		heldGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "podium",
				Subsystem: "writer_lock",
				Name:      "held",
				Help:      "1 if the writer lock is currently held, 0 otherwise",
			},
		),

		enabledGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "podium",
				Subsystem: "writer_lock",
				Name:      "enabled",
				Help:      "1 if the writer lock is enabled, 0 otherwise",
			},
		),

		holdDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "podium",
				Subsystem: "writer_lock",
				Name:      "hold_duration_seconds",
				Help:      "Time the writer lock was held before release",
				Buckets:   []float64{0.1, 1, 5, 10, 30, 60, 300, 600, 1800, 3600},
			},
		),
	}

	// Register with registry if provided
	if registry != nil {
		registry.MustRegister(
			m.acquireTotal,
			m.releaseTotal,
			m.heldGauge,
			m.enabledGauge,
			m.holdDuration,
		)
		m.registered = true
	}

	return m
}

// ObserveAcquire records an acquire attempt with its outcome.
func (m *Metrics) ObserveAcquire(status string) {
	if m == nil {
		return
	}
	m.acquireTotal.WithLabelValues(status).Inc()
}

// ObserveRelease records a release with its reason.
func (m *Metrics) ObserveRelease(reason string) {
	if m == nil {
		return
	}
	m.releaseTotal.WithLabelValues(reason).Inc()
}

// SetHeld sets whether the lock is currently held.
func (m *Metrics) SetHeld(held bool) {
	if m == nil {
		return
	}
	val := 0.0
	if held {
		val = 1.0
	}
	m.heldGauge.Set(val)
}

// SetEnabled sets whether the lock is enabled.
func (m *Metrics) SetEnabled(enabled bool) {
	if m == nil {
		return
	}
	val := 0.0
	if enabled {
		val = 1.0
	}
	m.enabledGauge.Set(val)
}

// ObserveHoldDuration records how long the lock was held.
func (m *Metrics) ObserveHoldDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.holdDuration.Observe(d.Seconds())
}
