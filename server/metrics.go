package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	clients         prometheus.Gauge
	broadcasts      prometheus.Counter
	writeErrors     prometheus.Counter
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates server collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nfcbridge",
			Subsystem: "server",
			Name:      "clients",
			Help:      "Connected WebSocket clients",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nfcbridge",
			Subsystem: "server",
			Name:      "broadcasts_total",
			Help:      "Total discoveries broadcast to clients",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nfcbridge",
			Subsystem: "server",
			Name:      "write_errors_total",
			Help:      "Total failed writes to WebSocket clients",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfcbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nfcbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.clients, m.broadcasts, m.writeErrors, m.requests, m.requestDuration)
	}
	return m
}

func (m *Metrics) setClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

func (m *Metrics) broadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) writeError() {
	if m == nil {
		return
	}
	m.writeErrors.Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// middleware instruments requests. WebSocket routes are excluded since
// their duration is the connection lifetime and the recorder would hide
// the Hijacker.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || r.URL.Path == PathClients || r.URL.Path == PathDevices {
			next.ServeHTTP(w, r)
			return
		}

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := strconv.Itoa(sr.status)
		m.requests.WithLabelValues(path, r.Method, status).Inc()
		m.requestDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
	})
}
