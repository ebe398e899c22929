// Package metrics exposes hub counters in Prometheus text format without
// pulling in prometheus/client_golang. Metrics are process-global and
// unlabelled; the hub is a single process with a fixed metric set.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metric registry.
var Collector = NewMetricsCollector()

type metricKind int

const (
	kindCounter metricKind = iota
	kindGauge
)

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

func (c *Counter) Inc() { c.value.Add(1) }
func (c *Counter) Add(n int64) { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	value atomic.Int64
}

func (g *Gauge) Set(v int64) { g.value.Store(v) }
func (g *Gauge) Inc() { g.value.Add(1) }
func (g *Gauge) Dec() { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks a value distribution over fixed buckets.
type Histogram struct {
	name string
	help string

	mu      sync.Mutex
	count   int64
	sum     float64
	bounds  []float64
	buckets []int64
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.buckets[i]++
		}
	}
}

type scalarMetric struct {
	kind metricKind
	name string
	help string
	get  func() int64
}

// MetricsCollector aggregates the hub's metrics and renders them as Prometheus
// exposition text.
type MetricsCollector struct {
	mu         sync.Mutex
	scalars    []scalarMetric
	histograms []*Histogram
	startTime  time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Counter registers a new counter. Call once per name, at package init.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	ctr := &Counter{}
	c.mu.Lock()
	c.scalars = append(c.scalars, scalarMetric{kindCounter, name, help, ctr.Value})
	c.mu.Unlock()
	return ctr
}

// Gauge registers a new gauge. Call once per name, at package init.
func (c *MetricsCollector) Gauge(name, help string) *Gauge {
	g := &Gauge{}
	c.mu.Lock()
	c.scalars = append(c.scalars, scalarMetric{kindGauge, name, help, g.Value})
	c.mu.Unlock()
	return g
}

// Histogram registers a new histogram with the given bucket upper bounds.
func (c *MetricsCollector) Histogram(name, help string, bounds []float64) *Histogram {
	sort.Float64s(bounds)
	h := &Histogram{name: name, help: help, bounds: bounds, buckets: make([]int64, len(bounds))}
	c.mu.Lock()
	c.histograms = append(c.histograms, h)
	c.mu.Unlock()
	return h
}

// Handler renders all registered metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder
		fmt.Fprintf(&sb, "# HELP relayhub_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE relayhub_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "relayhub_uptime_seconds %d\n", int64(time.Since(c.startTime).Seconds()))

		c.mu.Lock()
		scalars := c.scalars
		histograms := c.histograms
		c.mu.Unlock()

		for _, m := range scalars {
			kind := "counter"
			if m.kind == kindGauge {
				kind = "gauge"
			}
			fmt.Fprintf(&sb, "# HELP %s %s\n", m.name, m.help)
			fmt.Fprintf(&sb, "# TYPE %s %s\n", m.name, kind)
			fmt.Fprintf(&sb, "%s %d\n", m.name, m.get())
		}

		for _, h := range histograms {
			h.mu.Lock()
			fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
			fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
			for i, bound := range h.bounds {
				le := fmt.Sprintf("%g", bound)
				if math.IsInf(bound, 1) {
					le = "+Inf"
				}
				fmt.Fprintf(&sb, "%s_bucket{le=%q} %d\n", h.name, le, h.buckets[i])
			}
			fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
			fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
			h.mu.Unlock()
		}

		fmt.Fprint(w, sb.String())
	}
}

// Metrics used across the hub.
var (
	CommandsDispatched   = Collector.Counter("relayhub_commands_dispatched_total", "Total commands accepted for delivery")
	DispatchBackpressure = Collector.Counter("relayhub_dispatch_backpressure_total", "Total dispatches rejected for a full outbound queue")
	ReportsIngested      = Collector.Counter("relayhub_reports_total", "Total message reports ingested")
	HeartbeatsReceived   = Collector.Counter("relayhub_heartbeats_total", "Total heartbeats received")
	Evictions            = Collector.Counter("relayhub_evictions_total", "Total stale connections evicted")
	Supersessions        = Collector.Counter("relayhub_supersessions_total", "Total streams replaced by a newer subscription")
	ConnectedFrontends   = Collector.Gauge("relayhub_connected_frontends", "Frontends with a live command stream")

	StreamDuration = Collector.Histogram("relayhub_stream_duration_seconds", "Lifetime of command streams in seconds",
		[]float64{1, 10, 60, 300, 1800, 3600, 21600})
)
