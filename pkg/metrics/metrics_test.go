package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("test_total", "help")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("expected 5, got %d", c.Value())
	}
	if r.Counter("test_total", "") != c {
		t.Fatal("same name should return the same series")
	}

	g := r.Gauge("inflight", "")
	g.Inc()
	g.Inc()
	g.Dec()
	if g.Value() != 1 {
		t.Fatalf("expected 1, got %d", g.Value())
	}
	g.Set(10)
	assertContains(t, r.Render(), "# TYPE inflight gauge", "inflight 10", "# HELP test_total help", "test_total 5")
}

func TestHistogramBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("lat_seconds", "latency", []float64{1, 0.1, 10})
	for _, v := range []float64{0.0625, 0.5, 5, 50} {
		h.Observe(v)
	}
	assertContains(t, r.Render(),
		`lat_seconds_bucket{le="0.1"} 1`,
		`lat_seconds_bucket{le="1"} 2`,
		`lat_seconds_bucket{le="10"} 3`,
		`lat_seconds_bucket{le="+Inf"} 4`,
		`lat_seconds_sum 55.5625`,
		`lat_seconds_count 4`,
	)
}

func TestHistogramSince(t *testing.T) {
	h := New().Histogram("x", "", nil)
	h.Since(time.Now().Add(-time.Second))
	if h.n != 1 || h.sum < 1 {
		t.Fatalf("unexpected sum=%v count=%d", h.sum, h.n)
	}
}

func TestVecSeries(t *testing.T) {
	r := New()
	items := r.CounterVec("items_total", "Items", "kb", "outcome")
	items.With("golden-rules", "ok").Add(2)
	items.With("golden-rules", "error").Inc()
	items.With("golden-rules", "ok").Inc()
	r.HistogramVec("dur_seconds", "Duration", []float64{1}, "kb").With("a").Observe(0.5)

	out := r.Render()
	if strings.Count(out, "# TYPE items_total counter") != 1 {
		t.Fatalf("family header should appear once:\n%s", out)
	}
	assertContains(t, out,
		`items_total{kb="golden-rules",outcome="error"} 1`,
		`items_total{kb="golden-rules",outcome="ok"} 3`,
		`dur_seconds_bucket{le="1",kb="a"} 1`,
		`dur_seconds_bucket{le="+Inf",kb="a"} 1`,
		`dur_seconds_sum{kb="a"} 0.5`,
	)
}

func TestLabelValuesEscaped(t *testing.T) {
	r := New()
	r.CounterVec("odd_total", "", "kb").With(`a"b`).Inc()
	assertContains(t, r.Render(), `odd_total{kb="a\"b"} 1`)
}

func TestShapeMismatchPanics(t *testing.T) {
	cases := map[string]func(r *Registry){
		"wrong label count": func(r *Registry) { r.CounterVec("a_total", "", "kb").With() },
		"kind changes":      func(r *Registry) { r.Counter("b", ""); r.Gauge("b", "") },
		"labels change":     func(r *Registry) { r.CounterVec("c_total", "", "kb"); r.CounterVec("c_total", "", "outcome") },
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			f(New())
		})
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("hits_total", "").Inc()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assertContains(t, rec.Body.String(), "hits_total 1")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestAnalysisMetrics(t *testing.T) {
	r := New()
	a := NewAnalysis(r)
	a.ObserveAnalysis("ok", 2*time.Second)
	a.ObserveBatchItem("golden-rules", "error", time.Second)
	a.Truncated.Inc()
	a.InFlight.Inc()

	assertContains(t, r.Render(),
		`minesafe_analyses_total{outcome="ok"} 1`,
		`minesafe_batch_items_total{kb="golden-rules",outcome="error"} 1`,
		`minesafe_batch_item_duration_seconds_count{kb="golden-rules"} 1`,
		"minesafe_generation_truncated_total 1",
		"minesafe_batch_items_in_flight 1",
	)
}
