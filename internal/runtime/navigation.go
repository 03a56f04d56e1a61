package runtime

import (
	"context"

	"github.com/aretw0/wizard/internal/runloop"
	"github.com/aretw0/wizard/pkg/ports"
)

func navigateTo(router ports.Router, route string, params []string) runloop.Task {
	return runloop.Task{
		Name: "transitionTo " + route,
		Run: func(ctx context.Context) error {
			return router.TransitionTo(ctx, route, params...)
		},
	}
}

func navigateToURL(router ports.Router, url string) runloop.Task {
	return runloop.Task{
		Name: "transitionToURL " + url,
		Run: func(ctx context.Context) error {
			return router.TransitionToURL(ctx, url)
		},
	}
}

// schedule defers t; only the last navigation of a batch survives.
func (c *Controller) schedule(t runloop.Task) {
	if c.queue.Schedule(t) {
		c.logger.Debug("pending navigation replaced", "task", t.Name)
	}
}
