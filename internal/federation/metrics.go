package federation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors recorded by the client, the
// aggregator and the health monitor.
type Metrics struct {
	Registry      *prometheus.Registry
	QueryDuration *prometheus.HistogramVec
	QueriesTotal  *prometheus.CounterVec
	SearchesTotal prometheus.Counter
	RecordsTotal  prometheus.Counter
	HubUp         *prometheus.GaugeVec
}

// NewMetrics creates a dedicated registry with the federation collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solarnet_hub_query_duration_seconds",
		Help:    "Duration of single hub queries in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	queriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solarnet_hub_queries_total",
		Help: "Total number of hub queries by hub and outcome.",
	}, []string{"hub", "outcome"})

	searchesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarnet_searches_total",
		Help: "Total number of federated searches run.",
	})

	recordsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarnet_records_matched_total",
		Help: "Total number of records returned across all searches.",
	})

	hubUp := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "solarnet_hub_up",
		Help: "Whether the last health probe of a hub succeeded (1) or not (0).",
	}, []string{"hub"})

	reg.MustRegister(queryDuration, queriesTotal, searchesTotal, recordsTotal, hubUp)

	return &Metrics{
		Registry:      reg,
		QueryDuration: queryDuration,
		QueriesTotal:  queriesTotal,
		SearchesTotal: searchesTotal,
		RecordsTotal:  recordsTotal,
		HubUp:         hubUp,
	}
}

func (m *Metrics) observeQuery(hub string, outcome HubOutcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(string(outcome.Kind)).Observe(elapsed.Seconds())
	m.QueriesTotal.WithLabelValues(hub, string(outcome.Kind)).Inc()
}

func (m *Metrics) observeSearch(result *FederatedResult) {
	if m == nil {
		return
	}
	m.SearchesTotal.Inc()
	m.RecordsTotal.Add(float64(result.TotalCount))
}

func (m *Metrics) setHubUp(hub string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.HubUp.WithLabelValues(hub).Set(v)
}
