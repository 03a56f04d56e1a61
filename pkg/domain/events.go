package domain

import (
	"context"
	"time"
)

// TransitionEvent describes one call into a machine.
// Changed is false when the event was ignored by the current state.
type TransitionEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	Machine   MachineKind `json:"machine"`
	Key       string      `json:"key"` // table key, e.g. "tutorial" or "secrets"
	Event     EventName   `json:"event"`
	From      StateValue  `json:"from"`
	To        StateValue  `json:"to"`
	Changed   bool        `json:"changed"`
}

// ActionEvent describes one executed action.
type ActionEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	Machine   MachineKind `json:"machine"`
	Event     EventName   `json:"event,omitempty"` // empty when replaying entry actions
	Action    Action      `json:"action"`
}

// FeatureEvent describes a finished feature.
type FeatureEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Feature   string    `json:"feature"`
	Remaining []string  `json:"remaining"`
}

// LifecycleHooks defines callbacks for observing the tour.
type LifecycleHooks struct {
	OnTransition      func(context.Context, *TransitionEvent)
	OnAction          func(context.Context, *ActionEvent)
	OnFeatureComplete func(context.Context, *FeatureEvent)
}
