package runtime

import (
	"context"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/wizard/pkg/domain"
)

// SaveFeatures commits the ordered feature list and starts the first feature.
func (c *Controller) SaveFeatures(ctx context.Context, features []string) error {
	if err := c.validateFeatures(features); err != nil {
		return err
	}
	return c.saveFeatures(ctx, features)
}

// CompleteFeature finishes the head of the feature list.
func (c *Controller) CompleteFeature(ctx context.Context) error {
	if len(c.featureList) == 0 {
		return domain.ErrNoFeatureMachine
	}
	return c.completeFeature(ctx)
}

func (c *Controller) validateFeatures(features []string) error {
	if len(features) == 0 {
		return domain.ErrNoFeatures
	}
	for _, name := range features {
		if _, err := c.features.Feature(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) saveFeatures(ctx context.Context, features []string) error {
	if err := c.validateFeatures(features); err != nil {
		return err
	}
	// A new list starts from each feature's initial state.
	if err := c.store.Clear(ctx, c.keys.FeatureState, c.keys.FeatureStateHistory); err != nil {
		return c.storageError("remove", c.keys.FeatureState, err)
	}
	c.featureState = nil
	c.history = nil
	c.tracking = false

	c.featureList = slices.Clone(features)
	if err := c.store.SaveStrings(ctx, c.keys.FeatureList, c.featureList); err != nil {
		return c.storageError("save", c.keys.FeatureList, err)
	}
	return c.buildFeatureMachine(ctx)
}

// buildFeatureMachine drives the head of the list: the state is seeded from storage
// when it is valid for the machine, and its entry actions are replayed.
func (c *Controller) buildFeatureMachine(ctx context.Context) error {
	name := c.featureList[0]
	def, err := c.features.Feature(name)
	if err != nil {
		return err
	}

	state, ok, err := c.store.LoadState(ctx, c.keys.FeatureState)
	if err != nil {
		return c.storageError("load", c.keys.FeatureState, err)
	}
	if !ok || !def.Has(state) {
		state = def.InitialState()
	}

	c.featureMachine = def
	c.currentFeature = name
	if err := c.setFeatureState(ctx, state); err != nil {
		return err
	}

	c.nextFeature = domain.FinishLabel
	if len(c.featureList) > 1 {
		c.nextFeature = capitalize(c.featureList[1])
	}
	c.nextStep = c.computeNextStep()

	c.logger.Debug("feature machine started", "feature", name, "state", state.String())
	return c.executeActions(ctx, def.EntryActions(state), domain.Event{}, domain.MachineFeature)
}

// completeFeature moves the head of the list to the completed set and starts the next
// feature, or ends the feature section of the tour with DONE.
func (c *Controller) completeFeature(ctx context.Context) error {
	if len(c.featureList) == 0 {
		return nil
	}
	done, remaining := c.featureList[0], slices.Clone(c.featureList[1:])

	if !slices.Contains(c.completedFeatures, done) {
		c.completedFeatures = append(c.completedFeatures, done)
	}
	if err := c.store.SaveStrings(ctx, c.keys.CompletedFeatures, c.completedFeatures); err != nil {
		return c.storageError("save", c.keys.CompletedFeatures, err)
	}

	c.featureList = remaining
	if err := c.store.SaveStrings(ctx, c.keys.FeatureList, remaining); err != nil {
		return c.storageError("save", c.keys.FeatureList, err)
	}
	if err := c.store.Clear(ctx, c.keys.FeatureState); err != nil {
		return c.storageError("remove", c.keys.FeatureState, err)
	}
	c.featureState = nil

	if c.tracking {
		c.history = []string{}
		if err := c.store.SaveStrings(ctx, c.keys.FeatureStateHistory, c.history); err != nil {
			return c.storageError("save", c.keys.FeatureStateHistory, err)
		}
	}

	c.emitFeatureComplete(ctx, done, remaining)
	c.logger.Info("feature complete", "feature", done, "remaining", len(remaining))

	if len(remaining) > 0 {
		return c.buildFeatureMachine(ctx)
	}

	if err := c.store.Clear(ctx, c.keys.FeatureList); err != nil {
		return c.storageError("remove", c.keys.FeatureList, err)
	}
	c.featureList = nil
	c.featureMachine = nil
	c.currentFeature = ""
	c.nextStep = nil
	c.nextFeature = ""
	return c.TransitionTutorialMachine(ctx, c.currentState, domain.NewEvent(domain.EventDone), nil)
}

func (c *Controller) setFeatureState(ctx context.Context, state domain.StateValue) error {
	c.featureState = state
	if err := c.store.SaveState(ctx, c.keys.FeatureState, state); err != nil {
		return c.storageError("save", c.keys.FeatureState, err)
	}
	return c.recordVisit(ctx, state.String())
}

// computeNextStep previews the state CONTINUE (REPEAT on the secrets display) would
// lead to, without moving.
func (c *Controller) computeNextStep() domain.StateValue {
	if c.featureMachine == nil {
		return nil
	}
	event := domain.EventContinue
	if c.currentFeature == "secrets" && c.featureState.Matches("display") {
		event = domain.EventRepeat
	}
	res := c.featureMachine.Transition(c.featureState, event, c.componentState)
	if !res.Changed {
		return c.featureState.Clone()
	}
	return res.Value
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
