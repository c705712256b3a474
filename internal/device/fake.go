package device

import (
	"context"
	"errors"
)

// Sample is one scripted power reading for the fake plug.
type Sample struct {
	Power float64
	Err   error
}

// FakePlug is a test double that returns scripted power readings.
// Each ReadPower call consumes the next sample; once exhausted the
// last sample repeats.
type FakePlug struct {
	Name string
	// Samples contains scripted readings returned in order by ReadPower.
	Samples []Sample

	// On tracks the simulated relay state.
	On bool
	// TurnOnErr, if set, is returned by TurnOn.
	TurnOnErr error

	index     int
	ReadCalls int
	OnCalls   int
}

// NewFakePlug creates a FakePlug that is already switched on.
func NewFakePlug(name string, samples ...Sample) *FakePlug {
	return &FakePlug{Name: name, Samples: samples, On: true}
}

func (f *FakePlug) Alias() string { return f.Name }

func (f *FakePlug) IsOn(ctx context.Context) (bool, error) {
	return f.On, nil
}

func (f *FakePlug) TurnOn(ctx context.Context) error {
	f.OnCalls++
	if f.TurnOnErr != nil {
		return f.TurnOnErr
	}
	f.On = true
	return nil
}

func (f *FakePlug) ReadPower(ctx context.Context) (float64, error) {
	f.ReadCalls++
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Power, s.Err
}

// FakeDiscoverer returns a fixed device set.
type FakeDiscoverer struct {
	Devices []Device
	Err     error
}

func (f *FakeDiscoverer) Discover(ctx context.Context) ([]Device, error) {
	return f.Devices, f.Err
}
