package domain

// MachineKind tells the executor which machine produced an action batch.
type MachineKind string

const (
	MachineTutorial MachineKind = "tutorial"
	MachineFeature  MachineKind = "feature"
)

// Slot levels a render action can target.
const (
	SlotTutorial = "tutorial"
	SlotFeature  = "feature"
	SlotStep     = "step"
	SlotDetail   = "detail"
)

// Slots lists the render levels in display order.
var Slots = []string{SlotTutorial, SlotFeature, SlotStep, SlotDetail}

// DefaultKeyPrefix namespaces every persisted key.
const DefaultKeyPrefix = "wizard:"

// FinishLabel is shown as the next feature when the last feature is being toured.
const FinishLabel = "Finish"
