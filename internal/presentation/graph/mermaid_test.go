package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wizard/internal/presentation/graph"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
	"github.com/aretw0/wizard/pkg/machines"
)

func testTable(t *testing.T) *machine.Definition {
	t.Helper()
	def, err := machine.NewDef("demo").
		Initial("idle").
		On(domain.EventDismiss, "gone").
		State("idle", machine.WithTransition(domain.EventContinue, "active")).
		State("active", machine.WithInitial("first-step")).
		State("active.first-step",
			machine.WithTransition(domain.EventContinue, "#gone", machine.When(`a"b`, "kv")),
			machine.WithTransition(domain.EventRepeat, "", machine.Actions(domain.Do(domain.ActionContinueFeature))),
		).
		State("gone").
		Build()
	require.NoError(t, err)
	return def
}

func TestGenerateMermaid(t *testing.T) {
	got := graph.GenerateMermaid(testTable(t), nil)

	tests := []struct {
		name string
		want string
	}{
		{name: "initial state shape", want: `idle(("idle"))`},
		{name: "compound state shape", want: `active[["active"]]`},
		{name: "ID sanitization", want: `active_first_step["active.first-step"]`},
		{name: "initial child edge", want: `active -.-> active_first_step`},
		{name: "plain edge", want: `idle -- "CONTINUE" --> active`},
		{name: "guard label escaping", want: `active_first_step -- "CONTINUE [a'b, kv]" --> gone`},
		{name: "targetless loop", want: `active_first_step -. "REPEAT" .-> active_first_step`},
		{name: "root handlers", want: `any_state -- "DISMISS" --> gone`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, got, tt.want)
		})
	}
	assert.True(t, strings.HasPrefix(got, "graph TD\n"))
	assert.NotContains(t, got, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	got := graph.GenerateMermaid(testTable(t), &graph.GraphOverlay{
		VisitedStates: []string{"idle", "idle", "active.first-step"},
		CurrentState:  "active.first-step",
	})

	assert.Equal(t, 1, strings.Count(got, "class idle visited;"))
	assert.Contains(t, got, "class active_first_step current;")
	assert.NotContains(t, got, "class active_first_step visited;")
}

func TestGenerateMermaid_BundledTables(t *testing.T) {
	reg := machines.MustDefault()
	got := graph.GenerateMermaid(reg.Tutorial(), nil)

	assert.Contains(t, got, `init_active -.-> init_active_initialize`)
	assert.Contains(t, got, `active_feature -. "CONTINUE" .-> active_feature`)
}
