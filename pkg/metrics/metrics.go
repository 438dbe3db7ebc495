// Package metrics exposes process-wide operation counters.
package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry lazily creates counter vectors keyed by metric name. Label keys
// are fixed by the first increment of a given name.
type Registry struct {
	mu       sync.Mutex
	reg      *prometheus.Registry
	counters map[string]*prometheus.CounterVec
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		reg:      prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
	}
}

// Default is the registry services increment by default.
var Default = NewRegistry()

// IncrementCounter bumps the named counter on the default registry.
func IncrementCounter(name string, labels map[string]string) {
	Default.IncrementCounter(name, labels)
}

// Handler serves the default registry in the exposition format.
func Handler() http.Handler { return Default.Handler() }

// IncrementCounter bumps the named counter with the given labels.
func (r *Registry) IncrementCounter(name string, labels map[string]string) {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.mu.Lock()
	vec, ok := r.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, keys)
		if err := r.reg.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		r.counters[name] = vec
	}
	r.mu.Unlock()

	counter, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		// Label keys diverged from the first increment; drop rather than panic.
		return
	}
	counter.Inc()
}

// Handler serves this registry in the exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
