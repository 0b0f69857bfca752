package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	subrecords  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcflow",
			Name:      "transitions_total",
			Help:      "Committed request transitions by source and target status.",
		}, []string{"from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcflow",
			Name:      "rejections_total",
			Help:      "Rejected commands by reason.",
		}, []string{"reason"}),
		subrecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcflow",
			Name:      "subrecords_total",
			Help:      "Sign-offs, votes, inspections and comments recorded without a status change.",
		}, []string{"status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arcflow",
			Name:      "command_duration_seconds",
			Help:      "Command latency from guard acquisition to result.",
			Buckets: []float64{
				0.0005, 0.001, 0.005, 0.01,
				0.05, 0.1, 0.5, 1, 5,
			},
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.transitions, m.rejections, m.subrecords, m.latency)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
			m.latency.WithLabelValues("committed").Observe(e.Duration.Seconds())
		},
		OnRejected: func(_ context.Context, e *domain.TransitionEvent) {
			m.rejections.WithLabelValues(Reason(e.Err)).Inc()
			m.latency.WithLabelValues("rejected").Observe(e.Duration.Seconds())
		},
		OnSubrecord: func(_ context.Context, e *domain.TransitionEvent) {
			m.subrecords.WithLabelValues(string(e.From)).Inc()
			m.latency.WithLabelValues("committed").Observe(e.Duration.Seconds())
		},
	}
}

// Reason maps a command error onto a low-cardinality label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, domain.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, domain.ErrRequestNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
