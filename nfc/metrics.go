package nfc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the registry's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	listeners   prometheus.Gauge
	discoveries *prometheus.CounterVec
	drops       prometheus.Counter
}

// NewMetrics creates registry collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer for the process-wide /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nfcbridge",
			Subsystem: "registry",
			Name:      "listeners",
			Help:      "Number of registered discovery listeners",
		}),
		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfcbridge",
			Subsystem: "registry",
			Name:      "discoveries_total",
			Help:      "Total discoveries fanned out to listeners",
		}, []string{"type"}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nfcbridge",
			Subsystem: "registry",
			Name:      "dropped_total",
			Help:      "Total empty discoveries dropped before fan-out",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.listeners, m.discoveries, m.drops)
	}
	return m
}

func (m *Metrics) setListeners(n int) {
	if m == nil {
		return
	}
	m.listeners.Set(float64(n))
}

func (m *Metrics) delivered(d *Discovery) {
	if m == nil {
		return
	}
	label := string(d.Type)
	if d.IsStatus() {
		label = "STATUS"
	}
	m.discoveries.WithLabelValues(label).Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.drops.Inc()
}
