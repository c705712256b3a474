package service

import (
	"context"
	"errors"
	"fmt"

	"laundry_notifier/internal/device"
	"laundry_notifier/internal/logger"
	"laundry_notifier/internal/models"
)

// ErrNoAppliances means resolution left zero usable appliances, which
// is fatal for the run.
var ErrNoAppliances = errors.New("no usable appliances resolved")

// ResolveAppliances discovers the network's plugs and matches them to
// the requested plug names. A plug that cannot be found or turned on is
// dropped with a warning; only an empty result is an error. Plugs that
// were off are turned on and given cfg.PlugSettleTime for their power
// readings to stabilize.
func ResolveAppliances(ctx context.Context, disc device.Discoverer, infos []models.PlugInfo, cfg Config, log *logger.Logger) ([]*Appliance, error) {
	if len(infos) == 0 {
		return nil, fmt.Errorf("no washer or dryer specified, need at least one: %w", ErrNoAppliances)
	}

	found, err := disc.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover devices: %w", err)
	}
	byAlias := make(map[string]device.Device, len(found))
	for _, d := range found {
		byAlias[d.Alias()] = d
	}

	var appliances []*Appliance
	for _, info := range infos {
		dev, ok := byAlias[info.PlugName]
		if !ok {
			log.Warnw("plug not found among discovered devices, dropping appliance",
				"appliance", info.PlugName, "discovered", len(found))
			continue
		}

		on, err := dev.IsOn(ctx)
		if err != nil {
			log.Warnw("cannot query plug relay state, dropping appliance",
				"appliance", info.PlugName, "err", err)
			continue
		}
		if !on {
			if err := dev.TurnOn(ctx); err != nil {
				log.Warnw("unable to turn on plug, dropping appliance",
					"appliance", info.PlugName, "err", err)
				continue
			}
			log.Infow("plug was off, turned on; waiting for power to settle",
				"appliance", info.PlugName, "settle", cfg.PlugSettleTime)
			if err := sleepCtx(ctx, cfg.PlugSettleTime); err != nil {
				return nil, err
			}
		}

		appliances = append(appliances, NewAppliance(info, dev))
	}

	if len(appliances) == 0 {
		return nil, ErrNoAppliances
	}
	return appliances, nil
}
