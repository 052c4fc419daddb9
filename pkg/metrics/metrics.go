// Package metrics provides lightweight process metrics for relayd.
//
// The kernel is a small set of counter, gauge, and histogram types built
// on atomics, collected through a Registry and exposed in a plain text
// format. No external metrics client is pulled in; the hot path pays one
// atomic add per observation.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values does
// not match the metric's label names.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrDuplicateMetric is returned when registering a metric name twice.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// atomicFloat64 stores float64 bits in a uint64 for atomic access.
type atomicFloat64 struct {
	bits uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.bits))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&a.bits)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&a.bits, old, math.Float64bits(next)) {
			return
		}
	}
}

func (a *atomicFloat64) Store(v float64) {
	atomic.StoreUint64(&a.bits, math.Float64bits(v))
}

// Sample is one exposed metric value with its labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Metric is implemented by all metric kinds.
type Metric interface {
	Name() string
	Help() string
	Collect() []Sample
}

func labelsKey(values []string) string {
	return strings.Join(values, "\x00")
}

type labeledValue struct {
	labels map[string]string
	value  atomicFloat64
}

// vec is the shared labeled-series store behind Counter and Gauge.
type vec struct {
	name       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]*labeledValue
}

func (v *vec) series(labelValues []string) (*labeledValue, error) {
	if len(labelValues) != len(v.labelNames) {
		return nil, fmt.Errorf("%w: %s expected %d labels, got %d",
			ErrLabelCountMismatch, v.name, len(v.labelNames), len(labelValues))
	}
	key := labelsKey(labelValues)
	v.mu.RLock()
	lv, ok := v.values[key]
	v.mu.RUnlock()
	if ok {
		return lv, nil
	}

	labels := make(map[string]string, len(v.labelNames))
	for i, n := range v.labelNames {
		labels[n] = labelValues[i]
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if lv, ok = v.values[key]; !ok {
		lv = &labeledValue{labels: labels}
		v.values[key] = lv
	}
	return lv, nil
}

func (v *vec) collect(name string) []Sample {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Sample, 0, len(v.values))
	for _, lv := range v.values {
		out = append(out, Sample{Name: name, Labels: lv.labels, Value: lv.value.Load()})
	}
	return out
}

// Counter is a monotonically increasing metric.
type Counter struct {
	help string
	vec
}

// Name returns the metric name.
func (c *Counter) Name() string { return c.vec.name }

// Help returns the help text.
func (c *Counter) Help() string { return c.help }

// Inc increments the series for the given label values by 1.
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add increases the series for the given label values. Negative deltas
// and label arity mistakes are programming errors and are dropped.
func (c *Counter) Add(delta float64, labelValues ...string) {
	if delta < 0 {
		return
	}
	if lv, err := c.series(labelValues); err == nil {
		lv.value.Add(delta)
	}
}

// Collect implements Metric.
func (c *Counter) Collect() []Sample { return c.collect(c.vec.name) }

// Gauge is a metric that can go up and down.
type Gauge struct {
	help string
	vec
}

// Name returns the metric name.
func (g *Gauge) Name() string { return g.vec.name }

// Help returns the help text.
func (g *Gauge) Help() string { return g.help }

// Set stores the series value.
func (g *Gauge) Set(v float64, labelValues ...string) {
	if lv, err := g.series(labelValues); err == nil {
		lv.value.Store(v)
	}
}

// Add adjusts the series value by delta (may be negative).
func (g *Gauge) Add(delta float64, labelValues ...string) {
	if lv, err := g.series(labelValues); err == nil {
		lv.value.Add(delta)
	}
}

// Inc increments the series by 1.
func (g *Gauge) Inc(labelValues ...string) { g.Add(1, labelValues...) }

// Dec decrements the series by 1.
func (g *Gauge) Dec(labelValues ...string) { g.Add(-1, labelValues...) }

// Collect implements Metric.
func (g *Gauge) Collect() []Sample { return g.collect(g.vec.name) }

// Histogram tracks a distribution in fixed buckets.
type Histogram struct {
	name    string
	help    string
	bounds  []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	samples uint64
}

// Name returns the metric name.
func (h *Histogram) Name() string { return h.name }

// Help returns the help text.
func (h *Histogram) Help() string { return h.help }

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.bounds {
		if v <= b {
			h.counts[i]++
			break
		}
	}
	h.sum += v
	h.samples++
}

// Collect implements Metric. Bucket samples carry an "le" label; the
// final pair exposes sum and count.
func (h *Histogram) Collect() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Sample, 0, len(h.bounds)+2)
	cum := uint64(0)
	for i, b := range h.bounds {
		cum += h.counts[i]
		out = append(out, Sample{
			Name:   h.name + "_bucket",
			Labels: map[string]string{"le": fmt.Sprintf("%g", b)},
			Value:  float64(cum),
		})
	}
	out = append(out,
		Sample{Name: h.name + "_sum", Value: h.sum},
		Sample{Name: h.name + "_count", Value: float64(h.samples)},
	)
	return out
}

// Registry holds the process's metrics. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	ordered []Metric
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

func (r *Registry) add(name string, m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, name)
	}
	r.metrics[name] = m
	r.ordered = append(r.ordered, m)
	return nil
}

// NewCounter registers and returns a counter.
func (r *Registry) NewCounter(name, help string, labelNames ...string) (*Counter, error) {
	c := &Counter{help: help, vec: vec{name: name, labelNames: labelNames, values: make(map[string]*labeledValue)}}
	if err := r.add(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewGauge registers and returns a gauge.
func (r *Registry) NewGauge(name, help string, labelNames ...string) (*Gauge, error) {
	g := &Gauge{help: help, vec: vec{name: name, labelNames: labelNames, values: make(map[string]*labeledValue)}}
	if err := r.add(name, g); err != nil {
		return nil, err
	}
	return g, nil
}

// NewHistogram registers and returns a histogram with the given upper
// bucket bounds, sorted ascending. Values above the last bound count
// only toward sum and count.
func (r *Registry) NewHistogram(name, help string, bounds []float64) (*Histogram, error) {
	h := &Histogram{name: name, help: help, bounds: bounds, counts: make([]uint64, len(bounds))}
	if err := r.add(name, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Expose writes all metrics in exposition text format.
func (r *Registry) Expose(w *strings.Builder) {
	r.mu.RLock()
	metrics := make([]Metric, len(r.ordered))
	copy(metrics, r.ordered)
	r.mu.RUnlock()

	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", m.Name(), m.Help())
		samples := m.Collect()
		sort.Slice(samples, func(i, j int) bool {
			if samples[i].Name != samples[j].Name {
				return samples[i].Name < samples[j].Name
			}
			return labelString(samples[i].Labels) < labelString(samples[j].Labels)
		})
		for _, s := range samples {
			if len(s.Labels) == 0 {
				fmt.Fprintf(w, "%s %g\n", s.Name, s.Value)
				continue
			}
			fmt.Fprintf(w, "%s{%s} %g\n", s.Name, labelString(s.Labels), s.Value)
		}
	}
}

func labelString(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return strings.Join(parts, ",")
}

// Handler returns an http.Handler serving the registry exposition.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var b strings.Builder
		r.Expose(&b)
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(b.String()))
	})
}
