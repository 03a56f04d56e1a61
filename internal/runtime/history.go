package runtime

import (
	"context"
	"slices"
)

// recordVisit maintains the trail of feature states visited so far. Visiting a state
// already on the trail cuts the trail back to it.
func (c *Controller) recordVisit(ctx context.Context, state string) error {
	if !c.tracking {
		if len(c.completedFeatures) > 0 || !slices.Contains(loopAnchors, state) {
			return nil
		}
		c.tracking = true
		c.history = []string{state}
		return c.saveHistory(ctx)
	}

	if i := slices.Index(c.history, state); i >= 0 {
		if i == len(c.history)-1 {
			return nil
		}
		c.history = c.history[:i+1]
	} else {
		c.history = append(c.history, state)
	}
	return c.saveHistory(ctx)
}

func (c *Controller) saveHistory(ctx context.Context) error {
	if err := c.store.SaveStrings(ctx, c.keys.FeatureStateHistory, c.history); err != nil {
		return c.storageError("save", c.keys.FeatureStateHistory, err)
	}
	return nil
}
