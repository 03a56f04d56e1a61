package machine

import (
	"slices"

	"github.com/aretw0/wizard/pkg/domain"
)

// Definition is a built, read-only machine table.
type Definition struct {
	key    string
	root   *StateDef
	states map[string]*StateDef
	order  []string
}

// Key returns the table key ("tutorial", "secrets"...).
func (d *Definition) Key() string {
	return d.key
}

// Root returns the pseudo-state holding the root-level transitions.
func (d *Definition) Root() *StateDef {
	return d.root
}

// State returns the state at path.
func (d *Definition) State(path string) (*StateDef, bool) {
	st, ok := d.states[path]
	return st, ok
}

// Has reports whether v addresses a declared state.
func (d *Definition) Has(v domain.StateValue) bool {
	_, ok := d.states[v.String()]
	return ok
}

// States returns every state in declaration order.
func (d *Definition) States() []*StateDef {
	out := make([]*StateDef, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.states[id])
	}
	return out
}

// InitialState returns the declared starting state, resolved down to a leaf.
func (d *Definition) InitialState() domain.StateValue {
	return d.Resolve(domain.StateValue{d.root.Initial})
}

// Resolve follows initial children from v until it reaches a leaf.
func (d *Definition) Resolve(v domain.StateValue) domain.StateValue {
	out := v.Clone()
	for {
		st, ok := d.states[out.String()]
		if !ok || st.Initial == "" {
			return out
		}
		out = out.Append(st.Initial)
	}
}

// StateNodes returns the definitions from the outermost ancestor down to v.
// Unknown trailing levels are dropped.
func (d *Definition) StateNodes(v domain.StateValue) []*StateDef {
	var nodes []*StateDef
	for i := 1; i <= len(v); i++ {
		st, ok := d.states[v[:i].String()]
		if !ok {
			break
		}
		nodes = append(nodes, st)
	}
	return nodes
}

// EntryActions concatenates the entry actions of StateNodes(v).
func (d *Definition) EntryActions(v domain.StateValue) []domain.Action {
	var actions []domain.Action
	for _, st := range d.StateNodes(v) {
		actions = append(actions, st.OnEntry...)
	}
	return actions
}

// Events lists the events handled from v, including inherited ones, sorted by name.
func (d *Definition) Events(v domain.StateValue) []domain.EventName {
	seen := make(map[domain.EventName]bool)
	var out []domain.EventName
	for _, st := range append([]*StateDef{d.root}, d.StateNodes(v)...) {
		for event := range st.On {
			if !seen[event] {
				seen[event] = true
				out = append(out, event)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Transition computes where event takes the machine from current, and which actions
// that implies. ext is handed to guards untouched.
//
// When no candidate accepts the event (or current is not a declared state) the result
// stays on current with no actions and Changed set to false.
func (d *Definition) Transition(current domain.StateValue, event domain.EventName, ext any) Result {
	noop := Result{Value: current.Clone()}
	if !d.Has(current) {
		return noop
	}

	t, ok := d.match(current, event, ext)
	if !ok {
		return noop
	}

	if t.Target.IsZero() {
		return Result{
			Value:   current.Clone(),
			Actions: slices.Clone(t.Actions),
			Changed: true,
		}
	}

	target := d.Resolve(t.Target)
	common := commonPrefix(current, target)
	if common == len(current) && common == len(target) {
		// Self transition: the leaf is left and entered again.
		common--
	}

	var actions []domain.Action
	for i := len(current); i > common; i-- {
		actions = append(actions, d.states[current[:i].String()].OnExit...)
	}
	actions = append(actions, t.Actions...)
	for i := common + 1; i <= len(target); i++ {
		actions = append(actions, d.states[target[:i].String()].OnEntry...)
	}

	return Result{Value: target, Actions: actions, Changed: true}
}

// match looks for the event from the leaf up to the root. Within a state, the first
// candidate whose guard accepts ext wins.
func (d *Definition) match(current domain.StateValue, event domain.EventName, ext any) (TransitionDef, bool) {
	for i := len(current); i >= 0; i-- {
		st := d.root
		if i > 0 {
			st = d.states[current[:i].String()]
		}
		for _, t := range st.On[event] {
			if t.Guard == nil || t.Guard(ext) {
				return t, true
			}
		}
	}
	return TransitionDef{}, false
}

func commonPrefix(a, b domain.StateValue) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
