package machine

import (
	"fmt"
	"slices"
)

// ComponentIn accepts extended contexts whose string form is one of values.
// Strings and fmt.Stringer values are compared directly; a map is matched by its
// "type" entry, which is how feature components report the engine they configure.
func ComponentIn(values ...string) Guard {
	set := slices.Clone(values)
	return func(ext any) bool {
		s, ok := componentString(ext)
		if !ok {
			return false
		}
		return slices.Contains(set, s)
	}
}

func componentString(ext any) (string, bool) {
	switch v := ext.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	case map[string]any:
		if t, ok := v["type"].(string); ok {
			return t, true
		}
	case map[string]string:
		t, ok := v["type"]
		return t, ok
	}
	return "", false
}
