package domain

import (
	"fmt"
	"strings"
)

// ActionType names a side effect the controller knows how to perform.
type ActionType string

const (
	// ActionRender sets the component shown at a slot (Level). An empty Component clears it.
	ActionRender ActionType = "render"

	// ActionRouteTransition navigates to the route in Params[0] with the remaining params.
	// The navigation itself is deferred until the current batch has been applied.
	ActionRouteTransition ActionType = "routeTransition"

	// ActionSaveFeatures persists the feature list carried by the triggering event.
	ActionSaveFeatures ActionType = "saveFeatures"

	// ActionCompleteFeature pops the head of the feature list.
	ActionCompleteFeature ActionType = "completeFeature"

	ActionHandleDismissed ActionType = "handleDismissed"

	// ActionHandlePaused stores the resume target and stops the rest of the batch.
	ActionHandlePaused ActionType = "handlePaused"

	ActionHandleResume                  ActionType = "handleResume"
	ActionShowTutorialWhenAuthenticated ActionType = "showTutorialWhenAuthenticated"
	ActionShowTutorialAlways            ActionType = "showTutorialAlways"
	ActionClearFeatureData              ActionType = "clearFeatureData"

	// ActionContinueFeature sends CONTINUE to the feature machine with the current component state.
	ActionContinueFeature ActionType = "continueFeature"
)

var knownActions = map[ActionType]bool{
	ActionRender:                        true,
	ActionRouteTransition:               true,
	ActionSaveFeatures:                  true,
	ActionCompleteFeature:               true,
	ActionHandleDismissed:               true,
	ActionHandlePaused:                  true,
	ActionHandleResume:                  true,
	ActionShowTutorialWhenAuthenticated: true,
	ActionShowTutorialAlways:            true,
	ActionClearFeatureData:              true,
	ActionContinueFeature:               true,
}

// Known reports whether the controller can execute actions of this type.
func (t ActionType) Known() bool {
	return knownActions[t]
}

// Action is one instruction emitted by a transition or by a state's entry/exit list.
type Action struct {
	Type      ActionType `json:"type" yaml:"type" mapstructure:"type"`
	Level     string     `json:"level,omitempty" yaml:"level,omitempty" mapstructure:"level"`
	Component string     `json:"component,omitempty" yaml:"component,omitempty" mapstructure:"component"`
	Params    []string   `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
}

// Do returns a parameterless action.
func Do(t ActionType) Action {
	return Action{Type: t}
}

// Render returns a render action for a slot. An empty component clears the slot.
func Render(level, component string) Action {
	return Action{Type: ActionRender, Level: level, Component: component}
}

// RouteTransition returns a navigation action to route with params.
func RouteTransition(route string, params ...string) Action {
	return Action{Type: ActionRouteTransition, Params: append([]string{route}, params...)}
}

func (a Action) String() string {
	switch a.Type {
	case ActionRender:
		if a.Component == "" {
			return fmt.Sprintf("render(%s=<none>)", a.Level)
		}
		return fmt.Sprintf("render(%s=%s)", a.Level, a.Component)
	case ActionRouteTransition:
		return fmt.Sprintf("routeTransition(%s)", strings.Join(a.Params, ", "))
	default:
		return string(a.Type)
	}
}
