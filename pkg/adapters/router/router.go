// Package router provides a route-table implementation of ports.Router.
//
// Routes are named ("vault.cluster.tools.tool") and map to URL patterns whose
// ":name" segments are filled positionally from the params of URLFor. The table does
// not drive any real navigation: it records where the tour asked to go so a host
// (terminal, HTTP client) can follow along.
package router

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

var (
	// ErrUnknownRoute is returned for route names missing from the table.
	ErrUnknownRoute = errors.New("unknown route")
	// ErrParams is returned when the params do not fit the route pattern.
	ErrParams = errors.New("route params mismatch")
)

// DefaultRoutes is the route table the bundled machine tables navigate through.
func DefaultRoutes() map[string]string {
	return map[string]string{
		"vault.cluster.index":                         "/vault",
		"vault.cluster.init":                          "/vault/init",
		"vault.cluster.unseal":                        "/vault/unseal",
		"vault.cluster.auth":                          "/vault/auth",
		"vault.cluster.secrets.backends":              "/vault/secrets",
		"vault.cluster.settings.mount-secret-backend": "/vault/settings/mount-secret-backend",
		"vault.cluster.settings.auth.enable":          "/vault/settings/auth/enable",
		"vault.cluster.access.methods":                "/vault/access",
		"vault.cluster.policies.index":                "/vault/policies/:type",
		"vault.cluster.policies.create":               "/vault/policies/create/:type",
		"vault.cluster.replication.index":             "/vault/replication",
		"vault.cluster.tools.tool":                    "/vault/tools/:selected_action",
	}
}

// Navigation is one recorded call to TransitionTo or TransitionToURL.
type Navigation struct {
	Route string `json:"route,omitempty"`
	URL   string `json:"url"`
}

// Table implements ports.Router over a static set of routes.
// Safe for concurrent use.
type Table struct {
	routes map[string]string
	mux    *chi.Mux
	names  map[string]string // chi pattern -> route name

	mu       sync.RWMutex
	current  Navigation
	history  []Navigation
	onChange func(Navigation)
}

type Option func(*Table)

// WithRoutes adds or replaces routes.
func WithRoutes(routes map[string]string) Option {
	return func(t *Table) {
		maps.Copy(t.routes, routes)
	}
}

// OnNavigate registers a callback run after every navigation.
func OnNavigate(fn func(Navigation)) Option {
	return func(t *Table) {
		t.onChange = fn
	}
}

// New creates a table seeded with DefaultRoutes.
func New(opts ...Option) *Table {
	t := &Table{routes: DefaultRoutes()}
	for _, opt := range opts {
		opt(t)
	}
	t.mount()
	return t
}

// mount registers every pattern on a chi mux so URLs can be resolved back to names.
// When two routes share a pattern the first by name wins.
func (t *Table) mount() {
	t.mux = chi.NewMux()
	t.names = make(map[string]string, len(t.routes))
	for _, name := range slices.Sorted(maps.Keys(t.routes)) {
		pattern := chiPattern(t.routes[name])
		if _, taken := t.names[pattern]; taken {
			continue
		}
		t.names[pattern] = name
		t.mux.Get(pattern, http.NotFound)
	}
}

// chiPattern rewrites ":name" segments as chi's "{name}".
func chiPattern(pattern string) string {
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			segments[i] = "{" + name + "}"
		}
	}
	return strings.Join(segments, "/")
}

// URLFor fills the ":name" segments of the route pattern with params, in order.
func (t *Table) URLFor(route string, params ...string) (string, error) {
	pattern, ok := t.routes[route]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}

	segments := strings.Split(pattern, "/")
	next := 0
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		if next >= len(params) {
			return "", fmt.Errorf("%w: %s needs %s", ErrParams, route, seg)
		}
		segments[i] = url.PathEscape(params[next])
		next++
	}
	if next != len(params) {
		return "", fmt.Errorf("%w: %s takes %d params, got %d", ErrParams, route, next, len(params))
	}
	return strings.Join(segments, "/"), nil
}

// TransitionTo records a navigation to a named route.
func (t *Table) TransitionTo(ctx context.Context, route string, params ...string) error {
	u, err := t.URLFor(route, params...)
	if err != nil {
		return err
	}
	t.record(Navigation{Route: route, URL: u})
	return nil
}

// TransitionToURL records a navigation to u, naming the route when a pattern matches.
func (t *Table) TransitionToURL(ctx context.Context, u string) error {
	if u == "" {
		return fmt.Errorf("%w: empty url", ErrParams)
	}
	t.record(Navigation{Route: t.RouteFor(u), URL: u})
	return nil
}

// RouteFor returns the name of the route whose pattern matches u, or "".
func (t *Table) RouteFor(u string) string {
	path, _, _ := strings.Cut(u, "?")
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) {
		return ""
	}
	return t.names[rctx.RoutePattern()]
}

func (t *Table) record(n Navigation) {
	t.mu.Lock()
	t.current = n
	t.history = append(t.history, n)
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(n)
	}
}

// Current returns the last navigation.
func (t *Table) Current() Navigation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// History returns every navigation in order.
func (t *Table) History() []Navigation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Navigation(nil), t.history...)
}
