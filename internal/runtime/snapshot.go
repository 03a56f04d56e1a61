package runtime

import (
	"maps"
	"slices"

	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
)

// Snapshot is the read-only view the presentation layer binds to.
type Snapshot struct {
	CurrentState            domain.StateValue `json:"currentState"`
	FeatureState            domain.StateValue `json:"featureState,omitempty"`
	CurrentFeature          string            `json:"currentFeature,omitempty"`
	NextStep                domain.StateValue `json:"nextStep,omitempty"`
	NextFeature             string            `json:"nextFeature,omitempty"`
	ComponentState          any               `json:"componentState,omitempty"`
	ExpectedURL             string            `json:"expectedURL,omitempty"`
	ExpectedRouteName       string            `json:"expectedRouteName,omitempty"`
	ShowWhenUnauthenticated bool              `json:"showWhenUnauthenticated"`
	FeatureList             []string          `json:"featureList"`
	CompletedFeatures       []string          `json:"completedFeatures"`
	FeatureStateHistory     []string          `json:"featureStateHistory"`
	Slots                   map[string]string `json:"slots"`
	NeedsNavigationResolve  bool              `json:"needsNavigationResolve"`
	PendingNavigation       string            `json:"pendingNavigation,omitempty"`
}

// Snapshot copies the observable fields.
func (c *Controller) Snapshot() Snapshot {
	pending, _ := c.queue.Pending()
	return Snapshot{
		CurrentState:            c.currentState.Clone(),
		FeatureState:            c.featureState.Clone(),
		CurrentFeature:          c.currentFeature,
		NextStep:                c.nextStep.Clone(),
		NextFeature:             c.nextFeature,
		ComponentState:          c.componentState,
		ExpectedURL:             c.expectedURL,
		ExpectedRouteName:       c.expectedRouteName,
		ShowWhenUnauthenticated: c.showWhenUnauthenticated,
		FeatureList:             nonNil(c.featureList),
		CompletedFeatures:       nonNil(c.completedFeatures),
		FeatureStateHistory:     nonNil(c.history),
		Slots:                   maps.Clone(c.slots),
		NeedsNavigationResolve:  c.needsNavigationResolve,
		PendingNavigation:       pending,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// CurrentState returns the tutorial machine's position.
func (c *Controller) CurrentState() domain.StateValue { return c.currentState.Clone() }

// FeatureState returns the feature machine's position, zero without a feature machine.
func (c *Controller) FeatureState() domain.StateValue { return c.featureState.Clone() }

// CurrentFeature names the feature being toured.
func (c *Controller) CurrentFeature() string { return c.currentFeature }

// ComponentState returns the extended context handed to guards.
func (c *Controller) ComponentState() any { return c.componentState }

// Slot returns the component rendered at level.
func (c *Controller) Slot(level string) (string, bool) {
	name, ok := c.slots[level]
	return name, ok
}

// Tutorial returns the tutorial machine table.
func (c *Controller) Tutorial() *machine.Definition { return c.tutorial }

// FeatureMachine returns the table of the current feature, nil without one.
func (c *Controller) FeatureMachine() *machine.Definition { return c.featureMachine }
