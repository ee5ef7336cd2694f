package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Retrieval metrics
	SearchDuration *prometheus.HistogramVec
	SearchHits     *prometheus.HistogramVec
	TraversalNodes *prometheus.HistogramVec
	IndexOps       *prometheus.CounterVec

	// Sync and provider metrics
	SyncItems        *prometheus.CounterVec
	SyncDuration     prometheus.Histogram
	ProviderFailures *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a collector with its own registry, so several
// collectors can coexist in tests.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency by search type",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		SearchHits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_hits",
			Help:      "Number of hits returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
		}, []string{"type"}),
		TraversalNodes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_traversal_nodes",
			Help:      "Nodes emitted per traversal",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"strategy", "truncated"}),
		IndexOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_operations_total",
			Help:      "Index maintenance operations",
		}, []string{"operation", "status"}),
		SyncItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_items_total",
			Help:      "Notes processed by sync, by outcome",
		}, []string{"outcome"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of a sync pass",
			Buckets:   prometheus.DefBuckets,
		}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_provider_failures_total",
			Help:      "Embedding provider failures",
		}, []string{"provider", "transient"}),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.SearchDuration,
		c.SearchHits,
		c.TraversalNodes,
		c.IndexOps,
		c.SyncItems,
		c.SyncDuration,
		c.ProviderFailures,
	)
	return c
}

// Registry exposes the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, statusCode int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) ObserveSearch(searchType string, d time.Duration, hits int) {
	c.SearchDuration.WithLabelValues(searchType).Observe(d.Seconds())
	c.SearchHits.WithLabelValues(searchType).Observe(float64(hits))
}

func (c *Collector) ObserveTraversal(strategy string, nodes int, truncated bool) {
	c.TraversalNodes.WithLabelValues(strategy, strconv.FormatBool(truncated)).Observe(float64(nodes))
}

func (c *Collector) ObserveSync(success, failure, conflicts int, d time.Duration) {
	c.SyncItems.WithLabelValues("success").Add(float64(success))
	c.SyncItems.WithLabelValues("failure").Add(float64(failure))
	c.SyncItems.WithLabelValues("conflict").Add(float64(conflicts))
	c.SyncDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveIndexOperation(operation string, err error) {
	c.IndexOps.WithLabelValues(operation, status(err)).Inc()
}

func (c *Collector) IncProviderFailure(provider string, transient bool) {
	c.ProviderFailures.WithLabelValues(provider, strconv.FormatBool(transient)).Inc()
}
