package ports

import "context"

// Router is the navigation capability of the host application.
type Router interface {
	// URLFor builds the URL of a named route.
	URLFor(route string, params ...string) (string, error)

	// TransitionTo navigates to a named route.
	TransitionTo(ctx context.Context, route string, params ...string) error

	// TransitionToURL navigates to an already built URL, used when resuming a paused tour.
	TransitionToURL(ctx context.Context, url string) error
}
