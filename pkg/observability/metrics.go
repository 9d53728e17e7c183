package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "operad"

// Metrics collects node, freeze and patch counters for every kernel run
// through the engine it is hooked into.
type Metrics struct {
	registry     *prometheus.Registry
	nodeStarts   *prometheus.CounterVec
	nodeOutcomes *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	freezes      *prometheus.CounterVec
	entropy      *prometheus.GaugeVec
	patches      *prometheus.CounterVec
}

// MetricsOption configures Metrics.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	registry *prometheus.Registry
	buckets  []float64
}

// WithRegistry registers the collectors on r instead of a private registry.
func WithRegistry(r *prometheus.Registry) MetricsOption {
	return func(c *metricsConfig) {
		c.registry = r
	}
}

// WithBuckets overrides the node duration histogram buckets.
func WithBuckets(b []float64) MetricsOption {
	return func(c *metricsConfig) {
		c.buckets = b
	}
}

// NewMetrics creates and registers the collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := metricsConfig{buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: cfg.registry,
		nodeStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "node_starts_total",
			Help:      "Node visits started.",
		}, []string{"ko"}),
		nodeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "node_outcomes_total",
			Help:      "Node visit outcomes by kind (completed, retry, degraded).",
		}, []string{"ko", "outcome"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of completed node visits.",
			Buckets:   cfg.buckets,
		}, []string{"ko"}),
		freezes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "freezes_total",
			Help:      "Runs paused on the entropy cap.",
		}, []string{"ko"}),
		entropy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "freeze_entropy",
			Help:      "Accumulated entropy at the last freeze.",
		}, []string{"ko"}),
		patches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reflex_patches_total",
			Help:      "Reflex patches applied at iteration boundaries.",
		}, []string{"ko", "event"}),
	}
	m.registry.MustRegister(m.nodeStarts, m.nodeOutcomes, m.nodeDuration, m.freezes, m.entropy, m.patches)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStart: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeStarts.WithLabelValues(e.KernelID).Inc()
		},
		OnNodeComplete: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeOutcomes.WithLabelValues(e.KernelID, "completed").Inc()
			m.nodeDuration.WithLabelValues(e.KernelID).Observe(e.Duration.Seconds())
		},
		OnNodeRetry: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeOutcomes.WithLabelValues(e.KernelID, "retry").Inc()
		},
		OnNodeDegraded: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeOutcomes.WithLabelValues(e.KernelID, "degraded").Inc()
		},
		OnFreeze: func(_ context.Context, e *domain.FreezeEvent) {
			m.freezes.WithLabelValues(e.KernelID).Inc()
			m.entropy.WithLabelValues(e.KernelID).Set(e.Entropy)
		},
		OnPatch: func(_ context.Context, e *domain.PatchEvent) {
			m.patches.WithLabelValues(e.KernelID, e.EventType).Inc()
		},
	}
}
