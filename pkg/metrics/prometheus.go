package metrics

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus registers one vector per metric name on first use. The label
// names of a metric are fixed by its first observation.
type Prometheus struct {
	namespace string
	reg       prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

var _ Collector = (*Prometheus)(nil)

func NewPrometheus(namespace string, reg prometheus.Registerer) *Prometheus {
	return &Prometheus{
		namespace:  namespace,
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(labels map[string]string) []string {
	return slices.Sorted(maps.Keys(labels))
}

func vec[V prometheus.Collector](p *Prometheus, known map[string]V, name string, build func() V) V {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := known[name]; ok {
		return v
	}
	v := build()
	if err := p.reg.Register(v); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			v = are.ExistingCollector.(V)
		} else {
			slog.Warn("metric not registered", "name", name, "error", err)
		}
	}
	known[name] = v
	return v
}

func (p *Prometheus) IncCounter(name string, labels map[string]string, delta float64) {
	v := vec(p, p.counters, name, func() *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      name,
		}, labelNames(labels))
	})
	c, err := v.GetMetricWith(labels)
	if err != nil {
		slog.Warn("counter labels mismatch", "name", name, "error", err)
		return
	}
	c.Add(delta)
}

func (p *Prometheus) SetGauge(name string, labels map[string]string, value float64) {
	v := vec(p, p.gauges, name, func() *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      name,
		}, labelNames(labels))
	})
	g, err := v.GetMetricWith(labels)
	if err != nil {
		slog.Warn("gauge labels mismatch", "name", name, "error", err)
		return
	}
	g.Set(value)
}

func (p *Prometheus) ObserveHistogram(name string, labels map[string]string, value float64) {
	v := vec(p, p.histograms, name, func() *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Buckets:   prometheus.DefBuckets,
		}, labelNames(labels))
	})
	h, err := v.GetMetricWith(labels)
	if err != nil {
		slog.Warn("histogram labels mismatch", "name", name, "error", err)
		return
	}
	h.Observe(value)
}
