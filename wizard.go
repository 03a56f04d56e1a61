package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/wizard/internal/logging"
	"github.com/aretw0/wizard/internal/runtime"
	"github.com/aretw0/wizard/pkg/adapters/memory"
	"github.com/aretw0/wizard/pkg/adapters/router"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machines"
	"github.com/aretw0/wizard/pkg/persistence"
	"github.com/aretw0/wizard/pkg/ports"
)

// Snapshot is the observable state of a tour.
type Snapshot = runtime.Snapshot

// Guide is the high-level entry point for the library: one tour, one storage.
// It wraps the internal controller, serialises calls and follows deferred navigation
// before returning. Safe for concurrent use.
type Guide struct {
	mu       sync.Mutex
	ctrl     *runtime.Controller
	machines *machines.Registry
	storage  ports.Storage
	router   ports.Router
	prefix   string
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Guide.
type Option func(*Guide)

// WithStorage persists the tour in s. The default keeps it in memory.
func WithStorage(s ports.Storage) Option {
	return func(g *Guide) {
		g.storage = s
	}
}

// WithRouter navigates through r. The default records navigations in a router.Table.
func WithRouter(r ports.Router) Option {
	return func(g *Guide) {
		g.router = r
	}
}

// WithMachines replaces the bundled machine tables.
func WithMachines(reg *machines.Registry) Option {
	return func(g *Guide) {
		g.machines = reg
	}
}

// WithPrefix namespaces the storage keys.
func WithPrefix(prefix string) Option {
	return func(g *Guide) {
		g.prefix = prefix
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(g *Guide) {
		g.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guide) {
		g.logger = logger
	}
}

// New builds a Guide and restores whatever the storage holds.
func New(ctx context.Context, opts ...Option) (*Guide, error) {
	g := &Guide{}
	for _, opt := range opts {
		opt(g)
	}

	if g.machines == nil {
		reg, err := machines.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load machines: %w", err)
		}
		g.machines = reg
	}
	if g.storage == nil {
		g.storage = memory.NewStore()
	}
	if g.router == nil {
		g.router = router.New()
	}
	if g.logger == nil {
		g.logger = logging.NewNop()
	}

	g.ctrl = runtime.New(g.machines.Tutorial(), g.machines, g.storage, g.router,
		runtime.WithLogger(g.logger),
		runtime.WithLifecycleHooks(g.hooks),
		runtime.WithKeys(persistence.NewKeys(g.prefix)),
	)
	if err := g.ctrl.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := g.ctrl.Drain(ctx); err != nil {
		g.logger.Warn("navigation failed", "err", err)
	}
	return g, nil
}

func (g *Guide) do(ctx context.Context, fn func() error) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := fn()
	if navErr := g.ctrl.Drain(ctx); navErr != nil {
		g.logger.Warn("navigation failed", "err", navErr)
	}
	return g.ctrl.Snapshot(), err
}

// Send delivers an event to the tutorial machine. ext is the host's component state.
func (g *Guide) Send(ctx context.Context, event domain.Event, ext any) (Snapshot, error) {
	return g.do(ctx, func() error {
		return g.ctrl.TransitionTutorialMachine(ctx, nil, event, ext)
	})
}

// SendFeature delivers an event to the current feature machine.
func (g *Guide) SendFeature(ctx context.Context, event domain.Event, ext any) (Snapshot, error) {
	return g.do(ctx, func() error {
		return g.ctrl.TransitionFeatureMachine(ctx, nil, event, ext)
	})
}

// SaveFeatures replaces the feature list and starts its first machine.
func (g *Guide) SaveFeatures(ctx context.Context, features ...string) (Snapshot, error) {
	return g.do(ctx, func() error {
		return g.ctrl.SaveFeatures(ctx, features)
	})
}

// CompleteFeature finishes the current feature.
func (g *Guide) CompleteFeature(ctx context.Context) (Snapshot, error) {
	return g.do(ctx, func() error {
		return g.ctrl.CompleteFeature(ctx)
	})
}

// Restart runs the tour again from the feature selection.
func (g *Guide) Restart(ctx context.Context) (Snapshot, error) {
	return g.do(ctx, func() error {
		return g.ctrl.RestartGuide(ctx)
	})
}

// Snapshot returns the observable state.
func (g *Guide) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctrl.Snapshot()
}

// Component returns the catalog copy of a component shown in a slot.
func (g *Guide) Component(name string) (string, bool) {
	return g.machines.Component(name)
}

// Close releases the controller. Persisted state is kept.
func (g *Guide) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctrl.Teardown()
}
