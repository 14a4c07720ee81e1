package hub

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors a hub server records.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResourcesAdded  prometheus.Counter
}

// NewMetrics creates a dedicated registry with the hub collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solarnet_hub_http_requests_total",
		Help: "Total HTTP requests served by the hub, by route and status code.",
	}, []string{"route", "code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solarnet_hub_http_request_duration_seconds",
		Help:    "Duration of hub HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	added := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarnet_hub_resources_added_total",
		Help: "Total resources added through the hub API.",
	})

	reg.MustRegister(requests, duration, added)

	return &Metrics{
		Registry:        reg,
		RequestsTotal:   requests,
		RequestDuration: duration,
		ResourcesAdded:  added,
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// instrument records count and latency for one route.
func (m *Metrics) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) resourceAdded() {
	if m == nil {
		return
	}
	m.ResourcesAdded.Inc()
}
