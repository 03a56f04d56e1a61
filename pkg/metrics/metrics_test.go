package metrics_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wizard/internal/runtime"
	"github.com/aretw0/wizard/pkg/adapters/memory"
	"github.com/aretw0/wizard/pkg/adapters/router"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machines"
	"github.com/aretw0/wizard/pkg/metrics"
)

func TestCollectors_CountTour(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var chained int
	hooks := m.Hooks(domain.LifecycleHooks{
		OnFeatureComplete: func(context.Context, *domain.FeatureEvent) { chained++ },
	})

	defs := machines.MustDefault()
	ctrl := runtime.New(defs.Tutorial(), defs, memory.NewStore(), router.New(), runtime.WithLifecycleHooks(hooks))
	ctx := context.Background()
	require.NoError(t, ctrl.Initialize(ctx))

	require.NoError(t, ctrl.TransitionTutorialMachine(ctx, nil, domain.NewEvent("NOPE"), nil))
	require.NoError(t, ctrl.TransitionTutorialMachine(ctx, nil, domain.NewEvent(domain.EventAuth), nil))
	require.NoError(t, ctrl.SaveFeatures(ctx, []string{"replication"}))
	require.NoError(t, ctrl.CompleteFeature(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("tutorial", "AUTH", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("tutorial", "NOPE", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeaturesCompleted.WithLabelValues("replication")))
	assert.Positive(t, testutil.ToFloat64(m.Actions.WithLabelValues("tutorial", "render")))
	assert.Equal(t, 1, chained)

	expected := `
# HELP wizard_features_completed_total Features finished.
# TYPE wizard_features_completed_total counter
wizard_features_completed_total{feature="replication"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wizard_features_completed_total"))
}

func TestNew_NilRegisterer(t *testing.T) {
	m := metrics.New(nil)
	m.Hooks().OnTransition(context.Background(), &domain.TransitionEvent{Key: "secrets", Event: domain.EventContinue})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("secrets", "CONTINUE", "false")))
}
