package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide counters for the research loop.
type Metrics struct {
	registry *prometheus.Registry

	LLMRequests    *prometheus.CounterVec
	Searches       prometheus.Counter
	FetchFailures  prometheus.Counter
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	SubQuestions   prometheus.Counter
	SessionSeconds prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		LLMRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "searchagent",
			Name:      "llm_requests_total",
			Help:      "Text-generation requests by role.",
		}, []string{"role"}),
		Searches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "searchagent",
			Name:      "searches_total",
			Help:      "Search provider queries issued.",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "searchagent",
			Name:      "fetch_failures_total",
			Help:      "Page fetches that ended in a failure record.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "searchagent",
			Name:      "content_cache_hits_total",
			Help:      "Content cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "searchagent",
			Name:      "content_cache_misses_total",
			Help:      "Content cache misses.",
		}),
		SubQuestions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "searchagent",
			Name:      "sub_questions_total",
			Help:      "Sub-questions handed to the resolver.",
		}),
		SessionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "searchagent",
			Name:      "session_duration_seconds",
			Help:      "End-to-end duration of one answered question.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
