// Package metrics exposes Prometheus collectors for lead routing and index sync.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "searchahouse"

// Collector holds the application collectors on a dedicated registry.
type Collector struct {
	reg *prometheus.Registry

	routeResults  *prometheus.CounterVec
	routeLatency  *prometheus.HistogramVec
	routeRetries  prometheus.Counter
	syncResults   *prometheus.CounterVec
	syncLatency   *prometheus.HistogramVec
	deadLetters   *prometheus.CounterVec
	replayResults *prometheus.CounterVec
	purged        prometheus.Counter
}

// New creates a Collector with Go runtime and process collectors registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		reg: reg,
		routeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "route_results_total",
			Help:      "Lead routing outcomes (routed, no_eligible_agent, rejected, unavailable, error).",
		}, []string{"result"}),
		routeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "route_duration_seconds",
			Help:      "End-to-end lead routing latency by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"result"}),
		routeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "directory_retries_total",
			Help:      "Agent directory calls repeated after an unavailable response.",
		}),
		syncResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexsync",
			Name:      "events_total",
			Help:      "Change events processed by entity type and outcome (applied, stale, retry, dead_lettered).",
		}, []string{"entity_type", "result"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexsync",
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying one change event to the search index.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"entity_type"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexsync",
			Name:      "dead_letters_total",
			Help:      "Change events dead-lettered by reason (malformed, exhausted, permanent).",
		}, []string{"entity_type", "reason"}),
		replayResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexsync",
			Name:      "replays_total",
			Help:      "Dead-letter replay attempts by outcome.",
		}, []string{"result"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexsync",
			Name:      "tombstones_purged_total",
			Help:      "Tombstone documents removed by the retention job.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.routeResults, c.routeLatency, c.routeRetries,
		c.syncResults, c.syncLatency, c.deadLetters, c.replayResults, c.purged,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func (c *Collector) ObserveRoute(result string, elapsed time.Duration) {
	c.routeResults.WithLabelValues(result).Inc()
	c.routeLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (c *Collector) IncRouteRetry() {
	c.routeRetries.Inc()
}

func (c *Collector) ObserveSync(entityType, result string, elapsed time.Duration) {
	c.syncResults.WithLabelValues(entityType, result).Inc()
	c.syncLatency.WithLabelValues(entityType).Observe(elapsed.Seconds())
}

func (c *Collector) IncDeadLetter(entityType, reason string) {
	c.deadLetters.WithLabelValues(entityType, reason).Inc()
}

func (c *Collector) IncReplay(result string) {
	c.replayResults.WithLabelValues(result).Inc()
}

func (c *Collector) AddPurged(n int) {
	if n > 0 {
		c.purged.Add(float64(n))
	}
}
