package machine

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/wizard/pkg/domain"
)

// Builder collects states and transitions and validates them into a Definition.
//
// States are addressed by their dot path ("active.select"); the parent of a nested
// state must be declared too, in any order. Transition targets are relative to the
// parent of the declaring state, so a sibling is named directly ("feature") and a
// leading '#' makes a target absolute ("#active.feature").
type Builder struct {
	key     string
	initial string
	root    *stateSpec
	states  map[string]*stateSpec
	order   []string
}

type stateSpec struct {
	path    domain.StateValue
	initial string
	onEntry []domain.Action
	onExit  []domain.Action
	on      map[domain.EventName][]transitionSpec
	events  []domain.EventName
}

type transitionSpec struct {
	target  string
	actions []domain.Action
	when    []string
	guard   Guard
}

// StateOption configures a state.
type StateOption func(*stateSpec)

// TransitionOption configures a candidate transition.
type TransitionOption func(*transitionSpec)

// NewDef starts a table with the given key ("tutorial", "secrets"...).
func NewDef(key string) *Builder {
	return &Builder{
		key:    key,
		root:   newStateSpec(nil),
		states: make(map[string]*stateSpec),
	}
}

func newStateSpec(path domain.StateValue) *stateSpec {
	return &stateSpec{
		path: path,
		on:   make(map[domain.EventName][]transitionSpec),
	}
}

// WithInitial sets the default child of a compound state.
func WithInitial(child string) StateOption {
	return func(s *stateSpec) { s.initial = child }
}

// WithEntry appends actions run when the state is entered.
func WithEntry(actions ...domain.Action) StateOption {
	return func(s *stateSpec) { s.onEntry = append(s.onEntry, actions...) }
}

// WithExit appends actions run when the state is left.
func WithExit(actions ...domain.Action) StateOption {
	return func(s *stateSpec) { s.onExit = append(s.onExit, actions...) }
}

// WithTransition adds a candidate for event. Candidates are tried in the order added.
func WithTransition(event domain.EventName, target string, opts ...TransitionOption) StateOption {
	return func(s *stateSpec) { s.add(event, target, opts) }
}

// Actions sets the actions run by a transition.
func Actions(actions ...domain.Action) TransitionOption {
	return func(t *transitionSpec) { t.actions = append(t.actions, actions...) }
}

// When restricts a transition to component states in values.
func When(values ...string) TransitionOption {
	return func(t *transitionSpec) {
		t.when = append(t.when, values...)
		t.guard = ComponentIn(t.when...)
	}
}

// WithGuard restricts a transition with a custom guard.
func WithGuard(g Guard) TransitionOption {
	return func(t *transitionSpec) { t.guard = g }
}

func (s *stateSpec) add(event domain.EventName, target string, opts []TransitionOption) {
	ts := transitionSpec{target: target}
	for _, opt := range opts {
		opt(&ts)
	}
	if _, seen := s.on[event]; !seen {
		s.events = append(s.events, event)
	}
	s.on[event] = append(s.on[event], ts)
}

// Initial sets the top-level initial state.
func (b *Builder) Initial(id string) *Builder {
	b.initial = id
	return b
}

// On adds a root-level transition, available from every state.
func (b *Builder) On(event domain.EventName, target string, opts ...TransitionOption) *Builder {
	b.root.add(event, target, opts)
	return b
}

// State declares a state or adds options to an already declared one.
func (b *Builder) State(path string, opts ...StateOption) *Builder {
	spec, ok := b.states[path]
	if !ok {
		spec = newStateSpec(domain.ParseStateValue(path))
		b.states[path] = spec
		b.order = append(b.order, path)
	}
	for _, opt := range opts {
		opt(spec)
	}
	return b
}

// Build validates the table and returns an immutable Definition.
// All problems found are reported together.
func (b *Builder) Build() (*Definition, error) {
	var errs []error
	fail := func(state, format string, args ...any) {
		errs = append(errs, &DefinitionError{Machine: b.key, State: state, Reason: fmt.Sprintf(format, args...)})
	}

	if b.key == "" {
		fail("", "key is empty")
	}
	if b.initial == "" {
		fail("", "initial state not set")
	}

	def := &Definition{
		key:    b.key,
		root:   &StateDef{Initial: b.initial, OnEntry: b.root.onEntry, OnExit: b.root.onExit},
		states: make(map[string]*StateDef, len(b.states)),
		order:  slices.Clone(b.order),
	}
	for _, id := range b.order {
		spec := b.states[id]
		if strings.HasPrefix(id, "#") || slices.Contains(spec.path, "") {
			fail(id, "invalid state path")
			continue
		}
		def.states[id] = &StateDef{
			Path:    spec.path.Clone(),
			Initial: spec.initial,
			OnEntry: slices.Clone(spec.onEntry),
			OnExit:  slices.Clone(spec.onExit),
		}
	}

	// Link children in declaration order.
	for _, id := range b.order {
		st, ok := def.states[id]
		if !ok {
			continue
		}
		parent := def.root
		if p := st.Path.Parent(); !p.IsZero() {
			pd, ok := def.states[p.String()]
			if !ok {
				fail(id, "parent state %q not defined", p.String())
				continue
			}
			parent = pd
		}
		parent.Children = append(parent.Children, st.Path.Leaf())
	}

	if b.initial != "" && !slices.Contains(def.root.Children, b.initial) {
		fail("", "initial state %q not defined", b.initial)
	}
	for _, id := range b.order {
		st, ok := def.states[id]
		if !ok {
			continue
		}
		switch {
		case st.IsCompound() && st.Initial == "":
			fail(id, "compound state has no initial child")
		case st.Initial != "" && !slices.Contains(st.Children, st.Initial):
			fail(id, "initial child %q not defined", st.Initial)
		}
		validateActions(fail, id, st.OnEntry)
		validateActions(fail, id, st.OnExit)
	}

	def.root.On = b.buildTransitions(def, b.root, fail)
	for _, id := range b.order {
		if st, ok := def.states[id]; ok {
			st.On = b.buildTransitions(def, b.states[id], fail)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return def, nil
}

func (b *Builder) buildTransitions(def *Definition, spec *stateSpec, fail func(string, string, ...any)) map[domain.EventName][]TransitionDef {
	id := spec.path.String()
	out := make(map[domain.EventName][]TransitionDef, len(spec.on))
	for _, event := range spec.events {
		for _, ts := range spec.on[event] {
			target, err := resolveTarget(spec.path, ts.target)
			if err != nil {
				fail(id, "event %s: %v", event, err)
				continue
			}
			if !target.IsZero() {
				if _, ok := def.states[target.String()]; !ok {
					fail(id, "event %s: target %q not defined", event, target.String())
					continue
				}
			}
			validateActions(fail, id, ts.actions)
			out[event] = append(out[event], TransitionDef{
				Target:  target,
				Actions: slices.Clone(ts.actions),
				Guard:   ts.guard,
				When:    slices.Clone(ts.when),
			})
		}
	}
	return out
}

func resolveTarget(declaring domain.StateValue, target string) (domain.StateValue, error) {
	switch {
	case target == "":
		return nil, nil
	case target == "#":
		return nil, errors.New("empty absolute target")
	case strings.HasPrefix(target, "#"):
		return domain.ParseStateValue(target[1:]), nil
	default:
		return declaring.Parent().Append(domain.ParseStateValue(target)...), nil
	}
}

func validateActions(fail func(string, string, ...any), state string, actions []domain.Action) {
	for _, a := range actions {
		switch {
		case !a.Type.Known():
			fail(state, "unknown action type %q", a.Type)
		case a.Type == domain.ActionRender && a.Level == "":
			fail(state, "render action without level")
		case a.Type == domain.ActionRouteTransition && len(a.Params) == 0:
			fail(state, "routeTransition action without route")
		}
	}
}
