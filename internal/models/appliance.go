package models

import "time"

// ApplianceType tags which household appliance a plug is metering.
type ApplianceType string

const (
	Washer ApplianceType = "WASHER"
	Dryer  ApplianceType = "DRYER"
)

// ApplianceState is the detected operating state of an appliance.
type ApplianceState string

const (
	StateIdle     ApplianceState = "IDLE"
	StateRunning  ApplianceState = "RUNNING"
	StateFinished ApplianceState = "FINISHED"
)

// PlugInfo identifies one monitored smart plug. PlugName is the
// user-assigned alias used both for device discovery and as the section
// key in the persisted baseline file. Immutable after creation.
type PlugInfo struct {
	Type     ApplianceType `json:"type"`
	PlugName string        `json:"plug_name"`
}

// Baseline holds the learned power thresholds for one appliance.
// Both values are zero until a calibration run completes.
type Baseline struct {
	IdlePower    float64 `json:"idle_power"`    // watts while powered but not operating
	RunningPower float64 `json:"running_power"` // watts while actively running a cycle
}

// Valid reports whether the baseline has been fully calibrated.
// A running reading is only trusted once it exceeds twice the idle draw.
func (b Baseline) Valid() bool {
	return b.RunningPower > 2*b.IdlePower
}

// ApplianceStatus is a read-only snapshot of one appliance, served by
// the status API and the WebSocket stream.
type ApplianceStatus struct {
	Name         string         `json:"name"`
	Type         ApplianceType  `json:"type"`
	State        ApplianceState `json:"state"`
	IdlePower    float64        `json:"idle_power"`
	RunningPower float64        `json:"running_power"`
	LastPower    float64        `json:"last_power"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
