// Package metrics exposes linkscrub counters in Prometheus text format
// without pulling in prometheus/client_golang; the handful of metrics here
// does not justify that dependency tree.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide registry.
var Collector = NewRegistry()

// Registry holds all registered metrics and renders them in registration
// order, so scrapes are deterministic.
type Registry struct {
	mu      sync.Mutex
	metrics []renderable
	started time.Time
}

type renderable interface {
	render(sb *strings.Builder)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{started: time.Now()}
}

// Uptime reports how long this registry (the process) has been alive.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.started)
}

func (r *Registry) register(m renderable) {
	r.mu.Lock()
	r.metrics = append(r.metrics, m)
	r.mu.Unlock()
}

// Counter is a monotonically increasing value.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

func (c *Counter) render(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", c.name, c.help, c.name, c.name, c.Value())
}

// Gauge is a value that can move in both directions.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

func (g *Gauge) render(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", g.name, g.help, g.name, g.name, g.Value())
}

// Histogram tracks a value distribution over fixed cumulative buckets.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	uppers  []float64
	buckets []int64
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.uppers {
		if v <= le {
			h.buckets[i]++
		}
	}
}

func (h *Histogram) render(sb *strings.Builder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	for i, le := range h.uppers {
		fmt.Fprintf(sb, "%s_bucket{le=\"%g\"} %d\n", h.name, le, h.buckets[i])
	}
	fmt.Fprintf(sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(sb, "%s_sum %f\n", h.name, h.sum)
	fmt.Fprintf(sb, "%s_count %d\n", h.name, h.count)
}

// Counter registers and returns a new counter.
func (r *Registry) Counter(name, help string) *Counter {
	c := &Counter{name: name, help: help}
	r.register(c)
	return c
}

// Gauge registers and returns a new gauge.
func (r *Registry) Gauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	r.register(g)
	return g
}

// Histogram registers and returns a new histogram with the given upper
// bucket bounds (an implicit +Inf bucket is always rendered).
func (r *Registry) Histogram(name, help string, uppers []float64) *Histogram {
	uppers = append([]float64(nil), uppers...)
	sort.Float64s(uppers)
	h := &Histogram{name: name, help: help, uppers: uppers, buckets: make([]int64, len(uppers))}
	r.register(h)
	return h
}

// Handler renders every registered metric in Prometheus exposition format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder
		fmt.Fprintf(&sb, "# HELP linkscrub_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE linkscrub_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "linkscrub_uptime_seconds %d\n", int64(r.Uptime().Seconds()))

		r.mu.Lock()
		registered := append([]renderable(nil), r.metrics...)
		r.mu.Unlock()
		for _, m := range registered {
			m.render(&sb)
		}

		fmt.Fprint(w, sb.String())
	}
}

// Metrics fed by the engine, bus, and channels.
var (
	MessagesTotal = Collector.Counter("linkscrub_messages_total", "Total inbound messages seen")
	LinksDetected = Collector.Counter("linkscrub_links_detected_total", "Total URL candidates found in messages")
	LinksCleaned  = Collector.Counter("linkscrub_links_cleaned_total", "Total URLs rewritten")
	RewritesTotal = Collector.Counter("linkscrub_rewrites_total", "Total messages re-posted with cleaned links")
	SendFailures  = Collector.Counter("linkscrub_send_failures_total", "Total outbound sends that failed after retries")
	BusDrops      = Collector.Counter("linkscrub_bus_drops_total", "Total inbound messages dropped because the bus stayed full")
	WSConnections = Collector.Gauge("linkscrub_ws_connections", "Current WebSocket connections")

	CleanLatency = Collector.Histogram("linkscrub_clean_latency_seconds", "Message cleaning latency in seconds",
		[]float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1})
)
