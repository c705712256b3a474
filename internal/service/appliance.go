package service

import (
	"context"
	"time"

	"laundry_notifier/internal/device"
	"laundry_notifier/internal/models"
)

// Appliance aggregates the plug identity, the learned baseline, the
// detected state and the device handle. Created once per run after
// device resolution; lives for the process lifetime. State is mutated
// only by the monitor loop.
type Appliance struct {
	Info     models.PlugInfo
	Baseline models.Baseline
	State    models.ApplianceState
	Dev      device.Device
}

func NewAppliance(info models.PlugInfo, dev device.Device) *Appliance {
	return &Appliance{
		Info:  info,
		State: models.StateIdle,
		Dev:   dev,
	}
}

func (a *Appliance) Name() string { return a.Info.PlugName }

// readPower samples the appliance under the per-call device timeout.
func (a *Appliance) readPower(ctx context.Context, timeout time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.Dev.ReadPower(ctx)
}
