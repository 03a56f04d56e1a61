package runtime

import (
	"context"

	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
)

func (c *Controller) emitTransition(ctx context.Context, kind domain.MachineKind, key string, event domain.EventName, from domain.StateValue, res machine.Result) {
	to := from
	if res.Changed {
		to = res.Value
	}
	c.logger.Debug("transition", "machine", kind, "key", key, "event", event,
		"from", from.String(), "to", to.String(), "changed", res.Changed)

	if c.hooks.OnTransition == nil {
		return
	}
	c.hooks.OnTransition(ctx, &domain.TransitionEvent{
		Timestamp: c.now(),
		Machine:   kind,
		Key:       key,
		Event:     event,
		From:      from.Clone(),
		To:        to.Clone(),
		Changed:   res.Changed,
	})
}

func (c *Controller) emitAction(ctx context.Context, kind domain.MachineKind, event domain.EventName, action domain.Action) {
	if c.hooks.OnAction == nil {
		return
	}
	c.hooks.OnAction(ctx, &domain.ActionEvent{
		Timestamp: c.now(),
		Machine:   kind,
		Event:     event,
		Action:    action,
	})
}

func (c *Controller) emitFeatureComplete(ctx context.Context, feature string, remaining []string) {
	if c.hooks.OnFeatureComplete == nil {
		return
	}
	c.hooks.OnFeatureComplete(ctx, &domain.FeatureEvent{
		Timestamp: c.now(),
		Feature:   feature,
		Remaining: remaining,
	})
}
