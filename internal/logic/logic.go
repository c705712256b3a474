// Package logic contains the pure appliance state classification.
// This package performs NO I/O; the caller reads the live power sample
// before invoking Transition.
package logic

import "laundry_notifier/internal/models"

// runningFactor is the multiple of the idle baseline above which an
// appliance is presumed to be actively operating.
const runningFactor = 2.0

// RunningThreshold returns the power level above which an appliance
// with the given idle baseline counts as running.
func RunningThreshold(idlePower float64) float64 {
	return runningFactor * idlePower
}

// Transition classifies one power sample against the calibrated idle
// baseline and returns the next appliance state.
//
//   - IDLE stays IDLE while the sample is at or below twice the idle
//     baseline, otherwise the appliance has started: RUNNING.
//   - RUNNING becomes FINISHED only when the sample exactly equals the
//     idle baseline. Exact equality is deliberate; see the tolerance
//     discussion in DESIGN.md before widening it.
//   - FINISHED has no outgoing transition here. The poll loop resets
//     the appliance to IDLE after the finish notification is sent.
func Transition(cur models.ApplianceState, power, idlePower float64) models.ApplianceState {
	switch cur {
	case models.StateIdle:
		if power > RunningThreshold(idlePower) {
			return models.StateRunning
		}
		return models.StateIdle
	case models.StateRunning:
		if power == idlePower {
			return models.StateFinished
		}
		return models.StateRunning
	default:
		return cur
	}
}
