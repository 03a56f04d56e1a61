package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PathSeparator joins the levels of a StateValue in its path form.
const PathSeparator = "."

// StateValue identifies where a machine currently is.
// Each element is one level of the hierarchy, outermost first, so the compound
// value {"active": "select"} is StateValue{"active", "select"} with path "active.select".
type StateValue []string

// ParseStateValue splits a dot-joined path into a StateValue.
// The empty string yields the zero value.
func ParseStateValue(path string) StateValue {
	if path == "" {
		return nil
	}
	return StateValue(strings.Split(path, PathSeparator))
}

// String returns the dot-joined path used for storage and comparison.
func (v StateValue) String() string {
	return strings.Join(v, PathSeparator)
}

// IsZero reports whether the value points nowhere.
func (v StateValue) IsZero() bool {
	return len(v) == 0
}

// Root returns the outermost state name.
func (v StateValue) Root() string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Leaf returns the innermost state name.
func (v StateValue) Leaf() string {
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

// Parent returns the value one level up. The parent of a top-level state is the zero value.
func (v StateValue) Parent() StateValue {
	if len(v) <= 1 {
		return nil
	}
	return v[:len(v)-1].Clone()
}

// Append returns a new value with name nested below v.
func (v StateValue) Append(names ...string) StateValue {
	out := make(StateValue, 0, len(v)+len(names))
	out = append(out, v...)
	return append(out, names...)
}

// Clone returns a copy that does not share the backing array.
func (v StateValue) Clone() StateValue {
	if v == nil {
		return nil
	}
	out := make(StateValue, len(v))
	copy(out, v)
	return out
}

// Equal reports whether both values address the same state.
func (v StateValue) Equal(o StateValue) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// Matches reports whether v is the state at path or one of its descendants.
// "active.select" matches "active" and "active.select", but not "act".
func (v StateValue) Matches(path string) bool {
	p := ParseStateValue(path)
	if len(p) == 0 || len(p) > len(v) {
		return false
	}
	for i := range p {
		if p[i] != v[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes leaves as strings and compound values as single-key objects.
func (v StateValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(v.nested())
}

func (v StateValue) nested() any {
	if len(v) == 1 {
		return v[0]
	}
	return map[string]any{v[0]: v[1:].nested()}
}

// UnmarshalJSON accepts a leaf name, a dot-joined path or a nested single-key object.
func (v *StateValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := stateValueFrom(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func stateValueFrom(raw any) (StateValue, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseStateValue(t), nil
	case map[string]any:
		if len(t) != 1 {
			return nil, fmt.Errorf("state value must have exactly one active child, got %d", len(t))
		}
		for name, child := range t {
			rest, err := stateValueFrom(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return append(StateValue{name}, rest...), nil
		}
	}
	return nil, fmt.Errorf("unsupported state value of type %T", raw)
}
