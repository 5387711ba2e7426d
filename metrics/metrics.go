// Package metrics provides Prometheus metrics for contract calls and scored guesses.
package metrics

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Call status label values
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Manager owns the metrics and the registry they are exposed from.
type Manager struct {
	namespace    string
	scoreBuckets []float64
	registry     *prometheus.Registry

	contractCalls *prometheus.CounterVec
	guessesScored prometheus.Counter
	guessScore    prometheus.Histogram
	xpAwarded     prometheus.Counter
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithScoreBuckets sets the buckets of the guess score histogram.
func WithScoreBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.scoreBuckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a manager with a private registry unless WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:    "promptheist",
		scoreBuckets: prometheus.LinearBuckets(0, 10, 11),
		registry:     prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.contractCalls = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "contract_calls_total",
			Help:      "Total number of top-level contract calls by contract, function and status",
		},
		[]string{"contract", "function", "status"},
	)
	m.guessesScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "guesses_scored_total",
		Help:      "Total number of guesses scored by the judge",
	})
	m.guessScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "guess_score",
		Help:      "Distribution of guess scores (0-100)",
		Buckets:   m.scoreBuckets,
	})
	m.xpAwarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "xp_awarded_total",
		Help:      "Total experience points awarded to players",
	})
	return m
}

// ObserveCall counts a contract call, it satisfies vm.CallObserver.
func (m *Manager) ObserveCall(contract, function string, err error) {
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.contractCalls.WithLabelValues(contract, function, status).Inc()
}

// RecordGuess records one scored guess and the XP it earned.
func (m *Manager) RecordGuess(score, xp int) {
	m.guessesScored.Inc()
	m.guessScore.Observe(float64(score))
	if xp > 0 {
		m.xpAwarded.Add(float64(xp))
	}
}

// Registry returns the registry the metrics live in.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText writes a snapshot of the metrics in the text exposition format.
func (m *Manager) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", family.GetName(), err)
		}
	}
	return nil
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
