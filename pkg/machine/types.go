// Package machine holds the state definition tables and the pure transition function
// that interprets them.
//
// A Definition is built once with a Builder and never mutated afterwards. Transition,
// InitialState and StateNodes are side-effect free, so a single Definition can be shared
// by any number of controllers.
package machine

import "github.com/aretw0/wizard/pkg/domain"

// Guard decides whether a candidate transition applies for the extended context
// (component state) passed alongside the event.
type Guard func(ext any) bool

// TransitionDef is one candidate reaction to an event.
type TransitionDef struct {
	// Target is absolute from the root. A zero Target keeps the machine where it is
	// and only runs Actions.
	Target  domain.StateValue
	Actions []domain.Action
	Guard   Guard
	// When is the list of component-state values the guard was built from, kept for
	// introspection. Empty for unguarded or custom-guarded candidates.
	When []string
}

// StateDef is one node of the state tree.
type StateDef struct {
	Path     domain.StateValue
	Initial  string
	Children []string
	OnEntry  []domain.Action
	OnExit   []domain.Action
	On       map[domain.EventName][]TransitionDef
}

// ID returns the dot-joined path of the state.
func (s *StateDef) ID() string {
	return s.Path.String()
}

// IsCompound reports whether the state has children.
func (s *StateDef) IsCompound() bool {
	return len(s.Children) > 0
}

// Result is the outcome of a transition call.
type Result struct {
	// Value is the resolved leaf the machine is in after the event.
	Value domain.StateValue
	// Actions are exit actions (innermost first), transition actions, then entry
	// actions (outermost first).
	Actions []domain.Action
	// Changed is false when no transition matched.
	Changed bool
}
