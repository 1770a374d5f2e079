package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine collectors.
type Metrics struct {
	Reconciliations *prometheus.CounterVec
	PhaseDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg (skipped when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vmtune_reconciliations_total",
				Help: "Total number of finished reconciliations",
			},
			[]string{"kind", "outcome"},
		),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vmtune_phase_duration_seconds",
				Help:    "Time spent in each transaction phase",
				Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 15, 60},
			},
			[]string{"phase"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Reconciliations, m.PhaseDuration)
	}
	return m
}

// Hooks records every phase left and every finished reconciliation. Status queries
// are not reconciliations and are not counted.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhase: func(_ context.Context, e *domain.PhaseEvent) {
			m.PhaseDuration.WithLabelValues(string(e.From)).Observe(e.Elapsed.Seconds())
		},
		OnResult: func(_ context.Context, e *domain.ResultEvent) {
			if e.Result.Action == domain.ActionStatus {
				return
			}
			m.Reconciliations.WithLabelValues(e.Result.Kind, string(e.Result.Outcome)).Inc()
		},
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Chain calls each set of hooks in order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhase: func(ctx context.Context, e *domain.PhaseEvent) {
			for _, h := range hooks {
				if h.OnPhase != nil {
					h.OnPhase(ctx, e)
				}
			}
		},
		OnResult: func(ctx context.Context, e *domain.ResultEvent) {
			for _, h := range hooks {
				if h.OnResult != nil {
					h.OnResult(ctx, e)
				}
			}
		},
	}
}
