package machine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
)

var (
	renderIdle   = domain.Render(domain.SlotTutorial, "wizard/tutorial-idle")
	renderActive = domain.Render(domain.SlotTutorial, "wizard/tutorial-active")
	renderSelect = domain.Render(domain.SlotFeature, "wizard/features-selection")
	clearFeature = domain.Render(domain.SlotFeature, "")
	dismissed    = domain.Do(domain.ActionHandleDismissed)
)

func tourDef(t *testing.T) *machine.Definition {
	t.Helper()
	def, err := machine.NewDef("tutorial").
		Initial("idle").
		On(domain.EventDismiss, "dismissed").
		State("idle",
			machine.WithEntry(renderIdle),
			machine.WithTransition(domain.EventAuth, "#active.select"),
			machine.WithTransition(domain.EventContinue, "active"),
		).
		State("active",
			machine.WithInitial("select"),
			machine.WithEntry(renderActive),
			machine.WithExit(domain.Render(domain.SlotTutorial, "")),
		).
		State("active.select",
			machine.WithEntry(renderSelect),
			machine.WithExit(clearFeature),
			machine.WithTransition(domain.EventContinue, "feature", machine.Actions(domain.Do(domain.ActionSaveFeatures))),
			machine.WithTransition(domain.EventReset, "select"),
		).
		State("active.feature",
			machine.WithTransition(domain.EventContinue, "", machine.Actions(domain.Do(domain.ActionContinueFeature))),
		).
		State("dismissed", machine.WithEntry(dismissed)).
		Build()
	require.NoError(t, err)
	return def
}

func TestDefinition_InitialState(t *testing.T) {
	def := tourDef(t)
	assert.Equal(t, "idle", def.InitialState().String())
	assert.Equal(t, "tutorial", def.Key())
}

func TestDefinition_UnknownEventIsNoop(t *testing.T) {
	def := tourDef(t)

	for _, st := range def.States() {
		if st.IsCompound() {
			continue
		}
		t.Run(st.ID(), func(t *testing.T) {
			res := def.Transition(st.Path, "NOT_AN_EVENT", nil)
			assert.False(t, res.Changed)
			assert.Empty(t, res.Actions)
			assert.Equal(t, st.Path, res.Value)

			again := def.Transition(st.Path, "NOT_AN_EVENT", nil)
			assert.Equal(t, res, again)
		})
	}
}

func TestDefinition_UnknownStateIsNoop(t *testing.T) {
	def := tourDef(t)
	res := def.Transition(domain.ParseStateValue("gone.away"), domain.EventContinue, nil)
	assert.False(t, res.Changed)
	assert.Equal(t, "gone.away", res.Value.String())
}

func TestDefinition_AbsoluteTargetEntersOutermostFirst(t *testing.T) {
	def := tourDef(t)

	res := def.Transition(domain.StateValue{"idle"}, domain.EventAuth, nil)
	require.True(t, res.Changed)
	assert.Equal(t, "active.select", res.Value.String())
	assert.Equal(t, []domain.Action{renderActive, renderSelect}, res.Actions)
}

func TestDefinition_CompoundTargetResolvesInitialChild(t *testing.T) {
	def := tourDef(t)

	res := def.Transition(domain.StateValue{"idle"}, domain.EventContinue, nil)
	assert.Equal(t, "active.select", res.Value.String())
}

func TestDefinition_SiblingTargetKeepsParent(t *testing.T) {
	def := tourDef(t)

	res := def.Transition(domain.ParseStateValue("active.select"), domain.EventContinue, nil)
	assert.Equal(t, "active.feature", res.Value.String())
	assert.Equal(t, []domain.Action{clearFeature, domain.Do(domain.ActionSaveFeatures)}, res.Actions)
}

func TestDefinition_RootTransitionExitsInnermostFirst(t *testing.T) {
	def := tourDef(t)

	res := def.Transition(domain.ParseStateValue("active.select"), domain.EventDismiss, nil)
	assert.Equal(t, "dismissed", res.Value.String())
	assert.Equal(t, []domain.Action{
		clearFeature,
		domain.Render(domain.SlotTutorial, ""),
		dismissed,
	}, res.Actions)
}

func TestDefinition_SelfTransitionReentersLeaf(t *testing.T) {
	def := tourDef(t)

	res := def.Transition(domain.ParseStateValue("active.select"), domain.EventReset, nil)
	assert.Equal(t, "active.select", res.Value.String())
	assert.Equal(t, []domain.Action{clearFeature, renderSelect}, res.Actions)
}

func TestDefinition_TargetlessTransitionRunsActionsOnly(t *testing.T) {
	def := tourDef(t)

	res := def.Transition(domain.ParseStateValue("active.feature"), domain.EventContinue, nil)
	assert.True(t, res.Changed)
	assert.Equal(t, "active.feature", res.Value.String())
	assert.Equal(t, []domain.Action{domain.Do(domain.ActionContinueFeature)}, res.Actions)
}

func TestDefinition_ContextualTransition(t *testing.T) {
	def, err := machine.NewDef("secrets").
		Initial("enable").
		State("enable",
			machine.WithTransition(domain.EventContinue, "role", machine.When("aws", "pki")),
			machine.WithTransition(domain.EventContinue, "secret", machine.When("kv")),
			machine.WithTransition(domain.EventContinue, "list"),
		).
		State("role").
		State("secret").
		State("list").
		Build()
	require.NoError(t, err)

	tests := []struct {
		ext  any
		want string
	}{
		{ext: "aws", want: "role"},
		{ext: "kv", want: "secret"},
		{ext: map[string]any{"type": "pki"}, want: "role"},
		{ext: "consul", want: "list"},
		{ext: nil, want: "list"},
	}
	for _, tt := range tests {
		res := def.Transition(domain.StateValue{"enable"}, domain.EventContinue, tt.ext)
		assert.Equal(t, tt.want, res.Value.String(), "ext=%v", tt.ext)
	}
}

func TestDefinition_GuardFallsThroughToParent(t *testing.T) {
	def, err := machine.NewDef("m").
		Initial("a").
		State("a", machine.WithInitial("b")).
		State("a.b", machine.WithTransition(domain.EventContinue, "c", machine.When("only-this"))).
		State("a.c").
		State("d").
		On(domain.EventContinue, "d").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "a.c", def.Transition(domain.ParseStateValue("a.b"), domain.EventContinue, "only-this").Value.String())
	assert.Equal(t, "d", def.Transition(domain.ParseStateValue("a.b"), domain.EventContinue, "other").Value.String())
}

func TestDefinition_StateNodes(t *testing.T) {
	def := tourDef(t)

	nodes := def.StateNodes(domain.ParseStateValue("active.select"))
	require.Len(t, nodes, 2)
	assert.Equal(t, "active", nodes[0].ID())
	assert.Equal(t, "active.select", nodes[1].ID())
	assert.Equal(t, []domain.Action{renderActive, renderSelect}, def.EntryActions(domain.ParseStateValue("active.select")))

	assert.Empty(t, def.StateNodes(domain.StateValue{"nowhere"}))
}

func TestDefinition_Events(t *testing.T) {
	def := tourDef(t)
	assert.Equal(t,
		[]domain.EventName{domain.EventContinue, domain.EventDismiss, domain.EventReset},
		def.Events(domain.ParseStateValue("active.select")),
	)
}
