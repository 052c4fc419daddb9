package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCounterLabeledSeries(t *testing.T) {
	r := NewRegistry()
	c, err := r.NewCounter("reqs_total", "Requests.", "proto")
	if err != nil {
		t.Fatal(err)
	}
	c.Inc("http")
	c.Inc("http")
	c.Add(3, "ws")
	c.Add(-1, "ws") // negative deltas are dropped

	byProto := map[string]float64{}
	for _, s := range c.Collect() {
		byProto[s.Labels["proto"]] = s.Value
	}
	if byProto["http"] != 2 || byProto["ws"] != 3 {
		t.Fatalf("series = %v", byProto)
	}
}

func TestCounterLabelArityMismatchDropped(t *testing.T) {
	r := NewRegistry()
	c, _ := r.NewCounter("c", "c.", "a", "b")
	c.Inc("only-one")
	if len(c.Collect()) != 0 {
		t.Fatal("mismatched labels created a series")
	}
}

func TestGaugeUpDown(t *testing.T) {
	r := NewRegistry()
	g, _ := r.NewGauge("active", "Active.", "proto")
	g.Inc("http")
	g.Inc("http")
	g.Dec("http")
	g.Set(10, "ws")

	byProto := map[string]float64{}
	for _, s := range g.Collect() {
		byProto[s.Labels["proto"]] = s.Value
	}
	if byProto["http"] != 1 || byProto["ws"] != 10 {
		t.Fatalf("series = %v", byProto)
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry()
	h, _ := r.NewHistogram("lat", "Latency.", []float64{1, 10})
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(100) // above the last bound: sum and count only

	samples := h.Collect()
	got := map[string]float64{}
	for _, s := range samples {
		key := s.Name
		if le, ok := s.Labels["le"]; ok {
			key += ":" + le
		}
		got[key] = s.Value
	}
	if got["lat_bucket:1"] != 1 || got["lat_bucket:10"] != 2 {
		t.Fatalf("buckets = %v", got)
	}
	if got["lat_count"] != 3 || got["lat_sum"] != 105.5 {
		t.Fatalf("sum/count = %v", got)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewCounter("dup", "x.", "l"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.NewGauge("dup", "y."); !errors.Is(err, ErrDuplicateMetric) {
		t.Fatalf("duplicate registration err = %v", err)
	}
}

func TestExposeFormat(t *testing.T) {
	r := NewRegistry()
	c, _ := r.NewCounter("reqs_total", "Requests served.", "proto")
	c.Inc("http")

	var b strings.Builder
	r.Expose(&b)
	out := b.String()
	if !strings.Contains(out, "# HELP reqs_total Requests served.") {
		t.Errorf("missing help line:\n%s", out)
	}
	if !strings.Contains(out, `reqs_total{proto="http"} 1`) {
		t.Errorf("missing sample line:\n%s", out)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	r := NewRegistry()
	g, _ := r.NewGauge("up", "Up.")
	g.Set(1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "up 1") {
		t.Fatalf("response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCounterConcurrentAdds(t *testing.T) {
	r := NewRegistry()
	c, _ := r.NewCounter("n", "n.", "l")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc("x")
			}
		}()
	}
	wg.Wait()
	if got := c.Collect()[0].Value; got != 8000 {
		t.Fatalf("concurrent count = %g", got)
	}
}

func TestDefaultHelpersNoopBeforeInit(t *testing.T) {
	// Must not panic when the default set was never initialized.
	ConnOpened("http")
	ConnClosed("http", 1)
	RecvBuffer("http", 10)
	RecvResult("ok")
	MsgDropped("http")
	SendError("broken")
}
