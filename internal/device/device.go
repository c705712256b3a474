// Package device abstracts the power-metering smart plugs the notifier
// samples. The core only ever talks to the Device and Discoverer
// interfaces; the Kasa implementation is a thin LAN wrapper and the
// fake backs every test.
package device

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested plug alias is not among the
// discovered devices.
var ErrNotFound = errors.New("device not found")

// Device is one power-metering smart plug.
type Device interface {
	// Alias returns the user-assigned plug name.
	Alias() string
	// IsOn reports whether the plug relay is currently on.
	IsOn(ctx context.Context) (bool, error)
	// TurnOn switches the plug relay on.
	TurnOn(ctx context.Context) error
	// ReadPower returns the instantaneous power draw in watts.
	ReadPower(ctx context.Context) (float64, error)
}

// Discoverer finds metering plugs on the local network.
type Discoverer interface {
	Discover(ctx context.Context) ([]Device, error)
}
