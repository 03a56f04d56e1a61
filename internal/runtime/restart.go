package runtime

import (
	"context"

	"github.com/aretw0/wizard/pkg/domain"
)

// RestartGuide forgets the whole tour, starts it again and skips the idle gate with
// AUTH. Completed features are forgotten too.
func (c *Controller) RestartGuide(ctx context.Context) error {
	if err := c.clearFeatureData(ctx); err != nil {
		return err
	}
	tutorialKeys := []string{c.keys.TutorialState, c.keys.ComponentState, c.keys.ResumeURL, c.keys.ResumeRoute}
	if err := c.store.Clear(ctx, tutorialKeys...); err != nil {
		return c.storageError("remove", c.keys.TutorialState, err)
	}

	c.resetFields()
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	c.logger.Info("tour restarted")
	return c.TransitionTutorialMachine(ctx, c.currentState, domain.NewEvent(domain.EventAuth), nil)
}

// Reload drops the in-memory tour and rebuilds it from storage, for hosts where another
// process may have moved the tour since the last call. Navigation queued by the replayed
// entry actions is discarded: the page already shows the step being restored.
func (c *Controller) Reload(ctx context.Context) error {
	c.resetFields()
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	c.queue.Discard()
	return nil
}

// resetFields returns every tracked field to its declared default.
func (c *Controller) resetFields() {
	c.queue.Discard()
	c.resetFeatureFields()
	c.completedFeatures = nil
	c.currentState = nil
	c.componentState = nil
	c.expectedURL = ""
	c.expectedRouteName = ""
	c.showWhenUnauthenticated = false
	c.needsNavigationResolve = false
	c.slots = make(map[string]string)
}
