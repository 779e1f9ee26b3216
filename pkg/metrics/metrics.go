// Package metrics holds the Prometheus collectors for knowledge loads,
// fuzzy matches and chat requests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	KnowledgeLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolkb_knowledge_loads_total",
			Help: "Knowledge source reloads, labeled by result (ok, error, empty_source, unconfigured).",
		},
		[]string{"result"},
	)
	KnowledgeLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schoolkb_knowledge_load_duration_seconds",
			Help:    "Duration of knowledge source reloads in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	KnowledgeEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "schoolkb_knowledge_entries",
			Help: "Entries held in the current knowledge snapshot, labeled by language.",
		},
		[]string{"lang"},
	)
	MatchResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolkb_match_results_total",
			Help: "Fuzzy match lookups, labeled by outcome (hit, miss).",
		},
		[]string{"outcome"},
	)
	ChatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolkb_chat_requests_total",
			Help: "Chat API requests, labeled by HTTP status code.",
		},
		[]string{"status_code"},
	)
)

func init() {
	prometheus.MustRegister(KnowledgeLoads)
	prometheus.MustRegister(KnowledgeLoadDuration)
	prometheus.MustRegister(KnowledgeEntries)
	prometheus.MustRegister(MatchResults)
	prometheus.MustRegister(ChatRequests)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
