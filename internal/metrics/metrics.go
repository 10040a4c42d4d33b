// Package metrics holds the Prometheus collectors of the transform core.
// Every recording method is safe to call on a nil *Metrics, so components
// built without metrics need no special casing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plugchain"

// Status label values.
const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusUnsupported = "unsupported"
)

// Metrics holds all collectors.
type Metrics struct {
	// Module cache
	ModuleCompilations    *prometheus.CounterVec
	ModuleCompileDuration prometheus.Histogram
	CacheHits             prometheus.Counter
	CacheMisses           prometheus.Counter
	CachedModules         prometheus.Gauge

	// Chain execution
	PluginInvocations *prometheus.CounterVec
	PluginDuration    *prometheus.HistogramVec
	ChainRuns         *prometheus.CounterVec
	ChainDuration     prometheus.Histogram
	SerializedBytes   prometheus.Histogram
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModuleCompilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_compilations_total",
				Help:      "Total number of plugin module compilations",
			},
			[]string{"status"},
		),
		ModuleCompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "module_compile_duration_seconds",
				Help:      "Plugin module compilation duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_cache_hits_total",
				Help:      "Total number of module cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_cache_misses_total",
				Help:      "Total number of module cache misses",
			},
		),
		CachedModules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "module_cache_entries",
				Help:      "Number of compiled modules held by the cache",
			},
		),
		PluginInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_invocations_total",
				Help:      "Total number of plugin invocations",
			},
			[]string{"plugin", "status"},
		),
		PluginDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plugin_invocation_duration_seconds",
				Help:      "Plugin invocation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"plugin"},
		),
		ChainRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_runs_total",
				Help:      "Total number of plugin chain runs",
			},
			[]string{"status"},
		),
		ChainDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chain_duration_seconds",
				Help:      "Plugin chain duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SerializedBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "serialized_program_bytes",
				Help:      "Size of serialized programs crossing the plugin boundary",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.ModuleCompilations,
			m.ModuleCompileDuration,
			m.CacheHits,
			m.CacheMisses,
			m.CachedModules,
			m.PluginInvocations,
			m.PluginDuration,
			m.ChainRuns,
			m.ChainDuration,
			m.SerializedBytes,
		)
	}
	return m
}

// ObserveCompile records one module compilation.
func (m *Metrics) ObserveCompile(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModuleCompilations.WithLabelValues(status).Inc()
	m.ModuleCompileDuration.Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) SetCachedModules(n int) {
	if m == nil {
		return
	}
	m.CachedModules.Set(float64(n))
}

// ObservePlugin records one plugin invocation.
func (m *Metrics) ObservePlugin(plugin, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PluginInvocations.WithLabelValues(plugin, status).Inc()
	m.PluginDuration.WithLabelValues(plugin).Observe(d.Seconds())
}

// ObserveChain records one chain run. Unsupported runs carry no duration.
func (m *Metrics) ObserveChain(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChainRuns.WithLabelValues(status).Inc()
	if status != StatusUnsupported {
		m.ChainDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveSerialized(n int) {
	if m == nil {
		return
	}
	m.SerializedBytes.Observe(float64(n))
}
