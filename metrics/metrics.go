// Package metrics exports gate and graph activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/graph"
)

const namespace = "semgate"

// Collector implements gate.Observer and records rule results, gate verdicts
// and loaded graphs on its own registry.
type Collector struct {
	registry *prometheus.Registry

	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	verdicts *prometheus.CounterVec
	graphs   *prometheus.GaugeVec
}

// New creates a collector with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rule_results_total",
			Help:      "Rule evaluations by gate, outcome and severity.",
		}, []string{"gate", "outcome", "severity"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rule_duration_seconds",
			Help:      "Rule predicate latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"gate"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "verdicts_total",
			Help:      "Gate verdicts by gate and pass.",
		}, []string{"gate", "pass"}),
		graphs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "loaded",
			Help:      "1 while a framework's knowledge graph is loaded.",
		}, []string{"framework"}),
	}
	c.registry.MustRegister(
		c.results, c.duration, c.verdicts, c.graphs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveResult implements gate.Observer.
func (c *Collector) ObserveResult(_ context.Context, r gate.Result) {
	g := r.Gate.String()
	c.results.WithLabelValues(g, string(r.Outcome), string(r.Severity)).Inc()
	c.duration.WithLabelValues(g).Observe(r.Duration.Seconds())
}

// ObserveVerdict implements gate.Observer.
func (c *Collector) ObserveVerdict(_ context.Context, v gate.Verdict) {
	c.verdicts.WithLabelValues(v.Gate.String(), strconv.FormatBool(v.Pass)).Inc()
}

// TrackGraphs keeps the graph gauge in step with store.
func (c *Collector) TrackGraphs(store *graph.Store) {
	store.OnChange(func(ch graph.Change) {
		switch ch.Kind {
		case graph.ChangeLoaded:
			c.graphs.WithLabelValues(ch.Framework).Set(1)
		case graph.ChangeRemoved:
			c.graphs.DeleteLabelValues(ch.Framework)
		}
	})
	for _, fw := range store.Frameworks() {
		c.graphs.WithLabelValues(fw).Set(1)
	}
}
