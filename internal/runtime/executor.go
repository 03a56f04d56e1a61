package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/wizard/pkg/domain"
)

// executeActions applies a batch in order. Failures are collected and the batch goes
// on, except for handlePaused which ends it.
func (c *Controller) executeActions(ctx context.Context, actions []domain.Action, event domain.Event, kind domain.MachineKind) error {
	startNav := c.navCount
	defer func() {
		// The page resolves the landing URL itself unless this batch navigated.
		c.needsNavigationResolve = c.navCount == startNav
	}()

	var errs []error
	for _, action := range actions {
		c.emitAction(ctx, kind, event.Name, action)

		if action.Type == domain.ActionHandlePaused {
			errs = append(errs, c.handlePaused(ctx))
			c.logger.Debug("batch stopped by pause", "machine", kind)
			break
		}
		if err := c.execute(ctx, action, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", action.Type, err))
		}
	}
	return joinErrors(errs...)
}

func (c *Controller) execute(ctx context.Context, action domain.Action, event domain.Event) error {
	switch action.Type {
	case domain.ActionRender:
		c.render(action.Level, action.Component)
		return nil
	case domain.ActionRouteTransition:
		return c.routeTransition(action.Params)
	case domain.ActionSaveFeatures:
		return c.saveFeatures(ctx, event.Features)
	case domain.ActionCompleteFeature:
		return c.completeFeature(ctx)
	case domain.ActionHandleDismissed:
		return c.handleDismissed(ctx)
	case domain.ActionHandleResume:
		return c.handleResume(ctx)
	case domain.ActionShowTutorialWhenAuthenticated:
		c.showWhenUnauthenticated = false
		return nil
	case domain.ActionShowTutorialAlways:
		c.showWhenUnauthenticated = true
		return nil
	case domain.ActionClearFeatureData:
		return c.clearFeatureData(ctx)
	case domain.ActionContinueFeature:
		return c.TransitionFeatureMachine(ctx, c.featureState, domain.NewEvent(domain.EventContinue), c.componentState)
	default:
		// Tables are validated at build time; this only fires for hand-built batches.
		c.logger.Warn("unknown action skipped", "action", action.Type)
		return nil
	}
}

func (c *Controller) render(level, component string) {
	if component == "" {
		delete(c.slots, level)
		return
	}
	c.slots[level] = component
}

// routeTransition records where the tour expects the page to land and defers the
// navigation until the batch is done.
func (c *Controller) routeTransition(params []string) error {
	if len(params) == 0 {
		return fmt.Errorf("route transition without route")
	}
	route, args := params[0], params[1:]
	url, err := c.router.URLFor(route, args...)
	if err != nil {
		return err
	}
	c.expectedRouteName = route
	c.expectedURL = url
	c.navCount++
	c.schedule(navigateTo(c.router, route, args))
	return nil
}

// handlePaused keeps the pending target so the tour can bring the user back on resume.
func (c *Controller) handlePaused(ctx context.Context) error {
	if c.expectedURL == "" {
		return nil
	}
	if err := c.store.SaveString(ctx, c.keys.ResumeURL, c.expectedURL); err != nil {
		return c.storageError("save", c.keys.ResumeURL, err)
	}
	if err := c.store.SaveString(ctx, c.keys.ResumeRoute, c.expectedRouteName); err != nil {
		return c.storageError("save", c.keys.ResumeRoute, err)
	}
	c.expectedURL = ""
	c.expectedRouteName = ""
	return nil
}

func (c *Controller) handleResume(ctx context.Context) error {
	url, ok, err := c.store.LoadString(ctx, c.keys.ResumeURL)
	if err != nil {
		return c.storageError("load", c.keys.ResumeURL, err)
	}
	if !ok || url == "" {
		return nil
	}
	route, _, err := c.store.LoadString(ctx, c.keys.ResumeRoute)
	if err != nil {
		return c.storageError("load", c.keys.ResumeRoute, err)
	}

	c.expectedURL = url
	c.expectedRouteName = route
	c.navCount++
	c.schedule(navigateToURL(c.router, url))

	if err := c.store.Clear(ctx, c.keys.ResumeURL, c.keys.ResumeRoute); err != nil {
		return c.storageError("remove", c.keys.ResumeURL, err)
	}
	return nil
}

// handleDismissed drops feature progress and component state. The tutorial position is kept.
func (c *Controller) handleDismissed(ctx context.Context) error {
	keys := []string{c.keys.FeatureState, c.keys.FeatureList, c.keys.FeatureStateHistory, c.keys.ComponentState}
	err := c.store.Clear(ctx, keys...)
	c.resetFeatureFields()
	c.componentState = nil
	if err != nil {
		return c.storageError("remove", c.keys.FeatureList, err)
	}
	return nil
}

// clearFeatureData wipes feature-scoped keys and fields without touching the tutorial.
func (c *Controller) clearFeatureData(ctx context.Context) error {
	err := c.store.Clear(ctx, c.keys.Feature()...)
	c.resetFeatureFields()
	c.completedFeatures = nil
	if err != nil {
		return c.storageError("remove", c.keys.FeatureList, err)
	}
	return nil
}

func (c *Controller) resetFeatureFields() {
	c.featureMachine = nil
	c.currentFeature = ""
	c.featureState = nil
	c.featureList = nil
	c.history = nil
	c.tracking = false
	c.nextStep = nil
	c.nextFeature = ""
}
