// Package metrics exposes tour activity as Prometheus counters.
//
// Collectors bind to domain.LifecycleHooks, so any controller can be instrumented
// without knowing about Prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/wizard/pkg/domain"
)

const namespace = "wizard"

// Collectors holds the tour counters.
type Collectors struct {
	Transitions       *prometheus.CounterVec
	Actions           *prometheus.CounterVec
	FeaturesCompleted *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Events sent to a machine, by outcome.",
			},
			[]string{"machine", "event", "changed"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Actions executed, by type.",
			},
			[]string{"machine", "type"},
		),
		FeaturesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "features_completed_total",
				Help:      "Features finished.",
			},
			[]string{"feature"},
		),
	}
	if reg != nil {
		reg.MustRegister(c.Transitions, c.Actions, c.FeaturesCompleted)
	}
	return c
}

// Hooks returns lifecycle hooks that feed the collectors.
// next, if given, is called after each counter update.
func (c *Collectors) Hooks(next ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			changed := "false"
			if e.Changed {
				changed = "true"
			}
			c.Transitions.WithLabelValues(e.Key, string(e.Event), changed).Inc()
			for _, h := range next {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			c.Actions.WithLabelValues(string(e.Machine), string(e.Action.Type)).Inc()
			for _, h := range next {
				if h.OnAction != nil {
					h.OnAction(ctx, e)
				}
			}
		},
		OnFeatureComplete: func(ctx context.Context, e *domain.FeatureEvent) {
			c.FeaturesCompleted.WithLabelValues(e.Feature).Inc()
			for _, h := range next {
				if h.OnFeatureComplete != nil {
					h.OnFeatureComplete(ctx, e)
				}
			}
		},
	}
}
