// Package runtime hosts the tour controller: it owns the tutorial machine and the
// current feature machine, runs the actions their transitions emit, and mirrors every
// tracked field into storage so a reload resumes at the same step.
//
// A Controller is not safe for concurrent use. Hosts serialise calls (see pkg/session)
// and call Drain after each one to run the navigation a batch may have deferred.
package runtime

import (
	"context"
	"log/slog"
	"reflect"
	"slices"
	"time"

	"github.com/aretw0/wizard/internal/logging"
	"github.com/aretw0/wizard/internal/runloop"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
	"github.com/aretw0/wizard/pkg/persistence"
	"github.com/aretw0/wizard/pkg/ports"
)

// FeatureSource resolves feature names to machine tables.
type FeatureSource interface {
	Feature(name string) (*machine.Definition, error)
}

// loopAnchors are the feature states a fresh progress history may start from.
var loopAnchors = []string{"idle", "wrap"}

// Controller drives one tour.
type Controller struct {
	tutorial *machine.Definition
	features FeatureSource
	store    *persistence.Store
	router   ports.Router
	keys     persistence.Keys
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time

	queue    runloop.Queue
	navCount int // navigations scheduled so far

	currentState            domain.StateValue
	componentState          any
	featureMachine          *machine.Definition
	currentFeature          string
	featureState            domain.StateValue
	featureList             []string
	completedFeatures       []string
	history                 []string
	tracking                bool
	nextStep                domain.StateValue
	nextFeature             string
	expectedURL             string
	expectedRouteName       string
	showWhenUnauthenticated bool
	slots                   map[string]string
	needsNavigationResolve  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithKeys overrides the storage key names.
func WithKeys(keys persistence.Keys) Option {
	return func(c *Controller) {
		c.keys = keys
	}
}

// WithClock sets the time source of emitted events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a controller. Call Initialize before sending events.
func New(tutorial *machine.Definition, features FeatureSource, storage ports.Storage, router ports.Router, opts ...Option) *Controller {
	c := &Controller{
		tutorial: tutorial,
		features: features,
		router:   router,
		keys:     persistence.NewKeys(""),
		logger:   logging.NewNop(),
		now:      time.Now,
		slots:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	c.store = persistence.NewStore(storage, c.logger)
	return c
}

// Initialize rebuilds the in-memory tour from storage: tutorial position, component
// state and, when a feature list is persisted, the feature machine with its history.
// Entry actions of the restored states are replayed so slots are rendered again.
func (c *Controller) Initialize(ctx context.Context) error {
	state, ok, err := c.store.LoadState(ctx, c.keys.TutorialState)
	if err != nil {
		return c.storageError("load", c.keys.TutorialState, err)
	}
	if !ok || !c.tutorial.Has(state) {
		if ok {
			c.logger.Warn("persisted tutorial state is unknown, starting over", "state", state.String())
		}
		state = c.tutorial.InitialState()
		if err := c.store.SaveState(ctx, c.keys.TutorialState, state); err != nil {
			return c.storageError("save", c.keys.TutorialState, err)
		}
	}
	c.currentState = state

	component, _, err := c.store.LoadComponentState(ctx, c.keys.ComponentState)
	if err != nil {
		return c.storageError("load", c.keys.ComponentState, err)
	}
	c.componentState = component

	if err := c.executeActions(ctx, c.tutorial.EntryActions(state), domain.Event{}, domain.MachineTutorial); err != nil {
		return err
	}

	completed, _, err := c.store.LoadStrings(ctx, c.keys.CompletedFeatures)
	if err != nil {
		return c.storageError("load", c.keys.CompletedFeatures, err)
	}
	c.completedFeatures = completed

	list, ok, err := c.store.LoadStrings(ctx, c.keys.FeatureList)
	if err != nil {
		return c.storageError("load", c.keys.FeatureList, err)
	}
	if !ok || len(list) == 0 {
		return nil
	}
	c.featureList = list

	history, ok, err := c.store.LoadStrings(ctx, c.keys.FeatureStateHistory)
	if err != nil {
		return c.storageError("load", c.keys.FeatureStateHistory, err)
	}
	if ok {
		c.history = history
		c.tracking = true
	}

	if err := c.buildFeatureMachine(ctx); err != nil {
		if !isUnknownFeature(err) {
			return err
		}
		c.logger.Warn("persisted feature list is stale, clearing it", "features", list, "err", err)
		return c.clearFeatureData(ctx)
	}
	return nil
}

// Teardown drops pending navigation and the feature machine. Persisted state is kept.
func (c *Controller) Teardown() {
	c.queue.Discard()
	c.featureMachine = nil
	c.currentFeature = ""
}

// TransitionTutorialMachine sends event to the tutorial machine from current (the
// controller's own state when current is zero). A non-nil ext replaces the component
// state first. Events the current state does not handle change nothing.
func (c *Controller) TransitionTutorialMachine(ctx context.Context, current domain.StateValue, event domain.Event, ext any) error {
	if err := c.updateComponentState(ctx, ext); err != nil {
		return err
	}
	if current.IsZero() {
		current = c.currentState
	}

	res := c.tutorial.Transition(current, event.Name, c.componentState)
	c.emitTransition(ctx, domain.MachineTutorial, c.tutorial.Key(), event.Name, current, res)
	if !res.Changed {
		return nil
	}

	// A committed feature list is checked before the tour moves.
	if slices.ContainsFunc(res.Actions, func(a domain.Action) bool { return a.Type == domain.ActionSaveFeatures }) {
		if err := c.validateFeatures(event.Features); err != nil {
			return err
		}
	}

	c.currentState = res.Value
	if err := c.store.SaveState(ctx, c.keys.TutorialState, res.Value); err != nil {
		return c.storageError("save", c.keys.TutorialState, err)
	}
	return c.executeActions(ctx, res.Actions, event, domain.MachineTutorial)
}

// TransitionFeatureMachine sends event to the feature machine from current (the
// controller's feature state when current is zero). It does nothing while no feature
// machine exists or the tutorial is outside its active state.
func (c *Controller) TransitionFeatureMachine(ctx context.Context, current domain.StateValue, event domain.Event, ext any) error {
	if c.featureMachine == nil || !c.currentState.Matches("active") {
		c.logger.Debug("feature event ignored", "event", event.Name, "tutorial", c.currentState.String())
		return nil
	}
	if err := c.updateComponentState(ctx, ext); err != nil {
		return err
	}
	if current.IsZero() {
		current = c.featureState
	}

	def := c.featureMachine
	res := def.Transition(current, event.Name, c.componentState)
	c.emitTransition(ctx, domain.MachineFeature, def.Key(), event.Name, current, res)
	if !res.Changed {
		return nil
	}

	err := c.setFeatureState(ctx, res.Value)
	err = joinErrors(err, c.executeActions(ctx, res.Actions, event, domain.MachineFeature))

	// completeFeature may have finished the last feature and dropped the machine.
	if c.featureMachine != nil {
		c.nextStep = c.computeNextStep()
	}
	return err
}

// SetComponentState replaces and persists the extended context handed to guards.
func (c *Controller) SetComponentState(ctx context.Context, v any) error {
	c.componentState = v
	if err := c.store.SaveComponentState(ctx, c.keys.ComponentState, v); err != nil {
		return c.storageError("save", c.keys.ComponentState, err)
	}
	return nil
}

func (c *Controller) updateComponentState(ctx context.Context, ext any) error {
	if ext == nil || reflect.DeepEqual(ext, c.componentState) {
		return nil
	}
	return c.SetComponentState(ctx, ext)
}

// Drain runs the navigation deferred by the last batch, if any.
func (c *Controller) Drain(ctx context.Context) error {
	if err := c.queue.Drain(ctx); err != nil {
		c.logger.Warn("deferred navigation failed", "err", err)
		return err
	}
	return nil
}

// PendingNavigation names the navigation waiting for Drain.
func (c *Controller) PendingNavigation() (string, bool) {
	return c.queue.Pending()
}
