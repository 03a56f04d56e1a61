package machine

import "fmt"

// DefinitionError reports an inconsistency found while building a table.
type DefinitionError struct {
	Machine string
	State   string
	Reason  string
}

func (e *DefinitionError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("machine %q: %s", e.Machine, e.Reason)
	}
	return fmt.Sprintf("machine %q, state %q: %s", e.Machine, e.State, e.Reason)
}
