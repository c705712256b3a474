package models

import "time"

// Event types recorded in the cycle history.
const (
	EventCycleFinished = "CYCLE_FINISHED"
	EventCalibrated    = "CALIBRATED"
	EventError         = "ERROR"
)

// CycleEvent is a single entry in the appliance history log.
type CycleEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Appliance   string    `json:"appliance"`   // plug name, empty for run-level events
	Type        string    `json:"type"`        // CYCLE_FINISHED | CALIBRATED | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
