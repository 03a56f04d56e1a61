// Package graph renders machine tables as Mermaid flowcharts.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
)

// anyStateID is the node root-level handlers are drawn from.
const anyStateID = "any_state"

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
}

// GenerateMermaid produces a Mermaid flowchart for a machine table.
// It applies semantic styling:
// - Initial state: ((Circle))
// - Compound state: [[Subroutine]], with a dotted edge to its initial child
// - Default: [Rectangle]
// Guarded transitions carry their accepted values in the edge label. Transitions
// without a target loop back onto their state.
func GenerateMermaid(def *machine.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	initial := def.InitialState()
	root := def.Root()

	if len(root.On) > 0 {
		fmt.Fprintf(&sb, "    %s((\"*\"))\n", anyStateID)
		writeEdges(&sb, anyStateID, root)
	}

	for _, st := range def.States() {
		safeID := sanitizeMermaidID(st.ID())

		opener, closer := "[", "]"
		switch {
		case st.ID() == initial.Root():
			opener, closer = "((", "))"
		case st.IsCompound():
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, st.ID(), closer)

		if st.IsCompound() && st.Initial != "" {
			child := sanitizeMermaidID(st.Path.Append(st.Initial).String())
			fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, child)
		}
		writeEdges(&sb, safeID, st)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" && safeID != sanitizeMermaidID(overlay.CurrentState) {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentState))
		}
	}

	return sb.String()
}

func writeEdges(sb *strings.Builder, from string, st *machine.StateDef) {
	for _, event := range sortedEvents(st) {
		for _, t := range st.On[event] {
			label := string(event)
			if len(t.When) > 0 {
				label = fmt.Sprintf("%s [%s]", event, strings.Join(t.When, ", "))
			} else if t.Guard != nil {
				label += " [guarded]"
			}
			// Escape double quotes for the Mermaid label
			label = strings.ReplaceAll(label, "\"", "'")

			if t.Target.IsZero() {
				fmt.Fprintf(sb, "    %s -. \"%s\" .-> %s\n", from, label, from)
				continue
			}
			fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, label, sanitizeMermaidID(t.Target.String()))
		}
	}
}

func sortedEvents(st *machine.StateDef) []domain.EventName {
	events := make([]domain.EventName, 0, len(st.On))
	for e := range st.On {
		events = append(events, e)
	}
	slices.Sort(events)
	return events
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
