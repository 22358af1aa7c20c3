// Package metrics is a small in-process metrics registry that renders the
// Prometheus text exposition format. Each family has a fixed set of label
// names; series are created on first use with concrete label values.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are latency buckets in seconds, wide enough for model calls.
var DefaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}

// Counter only goes up.
type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge goes up and down.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Inc()         { g.v.Add(1) }
func (g *Gauge) Dec()         { g.v.Add(-1) }
func (g *Gauge) Set(n int64)  { g.v.Store(n) }
func (g *Gauge) Value() int64 { return g.v.Load() }

// Histogram counts observations into fixed upper-bound buckets.
type Histogram struct {
	bounds []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, not cumulative
	sum    float64
	n      uint64
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i := sort.SearchFloat64s(h.bounds, v); i < len(h.bounds) {
		h.counts[i]++
	}
	h.sum += v
	h.n++
}

// Since observes the seconds elapsed since start.
func (h *Histogram) Since(start time.Time) { h.Observe(time.Since(start).Seconds()) }

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

type family struct {
	name    string
	help    string
	kind    kind
	labels  []string
	buckets []float64

	mu     sync.Mutex
	series map[string]any // *Counter, *Gauge or *Histogram by encoded label values
	values map[string][]string
}

func (f *family) get(values []string) any {
	if len(values) != len(f.labels) {
		panic(fmt.Sprintf("metrics: %s wants %d label values, got %d", f.name, len(f.labels), len(values)))
	}
	key := strings.Join(values, "\xff")
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.series[key]; ok {
		return s
	}
	var s any
	switch f.kind {
	case kindCounter:
		s = &Counter{}
	case kindGauge:
		s = &Gauge{}
	case kindHistogram:
		s = &Histogram{bounds: f.buckets, counts: make([]uint64, len(f.buckets))}
	}
	f.series[key] = s
	f.values[key] = slices.Clone(values)
	return s
}

// Registry owns metric families in registration order.
type Registry struct {
	mu       sync.Mutex
	families []*family
	byName   map[string]*family
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: map[string]*family{}}
}

func (r *Registry) family(name, help string, k kind, buckets []float64, labels []string) *family {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.byName[name]; ok {
		if f.kind != k || !slices.Equal(f.labels, labels) {
			panic("metrics: " + name + " re-registered with a different shape")
		}
		return f
	}
	if k == kindHistogram {
		if buckets == nil {
			buckets = DefaultBuckets
		}
		buckets = slices.Clone(buckets)
		slices.Sort(buckets)
	}
	f := &family{
		name: name, help: help, kind: k,
		labels:  slices.Clone(labels),
		buckets: buckets,
		series:  map[string]any{},
		values:  map[string][]string{},
	}
	r.families = append(r.families, f)
	r.byName[name] = f
	return f
}

// Counter returns the unlabelled counter name, creating it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	return r.CounterVec(name, help).With()
}

// Gauge returns the unlabelled gauge name.
func (r *Registry) Gauge(name, help string) *Gauge {
	return r.family(name, help, kindGauge, nil, nil).get(nil).(*Gauge)
}

// Histogram returns the unlabelled histogram name. Nil buckets use DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	return r.HistogramVec(name, help, buckets).With()
}

// CounterVec is a counter family partitioned by labels.
type CounterVec struct{ f *family }

// CounterVec registers a counter family with the given label names.
func (r *Registry) CounterVec(name, help string, labels ...string) CounterVec {
	return CounterVec{r.family(name, help, kindCounter, nil, labels)}
}

// With returns the series for values, given in label order.
func (v CounterVec) With(values ...string) *Counter { return v.f.get(values).(*Counter) }

// HistogramVec is a histogram family partitioned by labels.
type HistogramVec struct{ f *family }

// HistogramVec registers a histogram family with the given label names.
func (r *Registry) HistogramVec(name, help string, buckets []float64, labels ...string) HistogramVec {
	return HistogramVec{r.family(name, help, kindHistogram, buckets, labels)}
}

// With returns the series for values, given in label order.
func (v HistogramVec) With(values ...string) *Histogram { return v.f.get(values).(*Histogram) }

// WriteTo renders every family in the text exposition format.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	r.mu.Lock()
	fams := slices.Clone(r.families)
	r.mu.Unlock()

	var b strings.Builder
	for _, f := range fams {
		f.write(&b)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Render returns the text exposition as a string.
func (r *Registry) Render() string {
	var b strings.Builder
	r.WriteTo(&b)
	return b.String()
}

// Handler serves the registry at /metrics.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	})
}

func (f *family) write(b *strings.Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.help != "" {
		fmt.Fprintf(b, "# HELP %s %s\n", f.name, f.help)
	}
	fmt.Fprintf(b, "# TYPE %s %s\n", f.name, f.kind)

	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs := labelPairs(f.labels, f.values[k])
		switch s := f.series[k].(type) {
		case *Counter:
			fmt.Fprintf(b, "%s%s %d\n", f.name, braces(pairs), s.Value())
		case *Gauge:
			fmt.Fprintf(b, "%s%s %d\n", f.name, braces(pairs), s.Value())
		case *Histogram:
			writeHistogram(b, f.name, pairs, s)
		}
	}
}

func writeHistogram(b *strings.Builder, name string, pairs []string, h *Histogram) {
	h.mu.Lock()
	counts := slices.Clone(h.counts)
	sum, n := h.sum, h.n
	h.mu.Unlock()

	var cum uint64
	for i, bound := range h.bounds {
		cum += counts[i]
		le := append([]string{`le="` + strconv.FormatFloat(bound, 'g', -1, 64) + `"`}, pairs...)
		fmt.Fprintf(b, "%s_bucket%s %d\n", name, braces(le), cum)
	}
	fmt.Fprintf(b, "%s_bucket%s %d\n", name, braces(append([]string{`le="+Inf"`}, pairs...)), n)
	fmt.Fprintf(b, "%s_sum%s %g\n", name, braces(pairs), sum)
	fmt.Fprintf(b, "%s_count%s %d\n", name, braces(pairs), n)
}

func labelPairs(names, values []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + "=" + strconv.Quote(values[i])
	}
	return out
}

func braces(pairs []string) string {
	if len(pairs) == 0 {
		return ""
	}
	return "{" + strings.Join(pairs, ",") + "}"
}
