package domain

// EventName identifies an input understood by a machine table.
// Tables may use names beyond the constants below; unknown names are simply ignored.
type EventName string

const (
	EventContinue EventName = "CONTINUE"
	EventRepeat   EventName = "REPEAT"
	EventDone     EventName = "DONE"
	EventAuth     EventName = "AUTH"
	EventInit     EventName = "INIT"
	EventDismiss  EventName = "DISMISS"
	EventPause    EventName = "PAUSE"
	EventReset    EventName = "RESET"
)

// Event is a named input, optionally carrying the ordered feature list chosen by the user.
type Event struct {
	Name     EventName `json:"type"`
	Features []string  `json:"features,omitempty"`
}

// NewEvent returns an event without payload.
func NewEvent(name EventName) Event {
	return Event{Name: name}
}
