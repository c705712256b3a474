package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laundry_notifier/internal/logger"
	"laundry_notifier/internal/models"
	"laundry_notifier/internal/repository"
)

// ErrCalibrationFailed means at least one appliance never produced a
// valid running power within the retry budget. Nothing is persisted.
var ErrCalibrationFailed = errors.New("calibration failed: running power never exceeded threshold")

// CalibrationService drives the appliances through the idle-then-running
// probe sequence and persists the learned baselines, all or nothing.
type CalibrationService struct {
	appliances []*Appliance
	baselines  repository.BaselineRepo
	events     repository.EventRepo
	cfg        Config
	log        *logger.Logger
}

func NewCalibrationService(appliances []*Appliance, baselines repository.BaselineRepo, events repository.EventRepo, cfg Config, log *logger.Logger) *CalibrationService {
	return &CalibrationService{
		appliances: appliances,
		baselines:  baselines,
		events:     events,
		cfg:        cfg,
		log:        log,
	}
}

// Run learns idle and running baselines for every appliance. The
// operator is expected to start the appliance(s) during the settle
// wait between the idle sample and the running probes.
func (s *CalibrationService) Run(ctx context.Context) error {
	// Phase 1: every appliance is assumed idle right now.
	for _, a := range s.appliances {
		p, err := a.readPower(ctx, s.cfg.ReadTimeout)
		if err != nil {
			return fmt.Errorf("sample idle power for %s: %w", a.Name(), err)
		}
		a.Baseline.IdlePower = p
		s.log.Infow("idle power captured", "appliance", a.Name(), "idle_power", p)
	}

	// Phase 2: give the operator time to start the appliance(s).
	s.log.Infow("waiting for appliance(s) to be started", "wait", s.cfg.SettleWait)
	if err := sleepCtx(ctx, s.cfg.SettleWait); err != nil {
		return err
	}

	// Phase 3: probe until every appliance shows a valid running power.
	var (
		retryCount int
		elapsed    time.Duration
		budget     = time.Duration(s.cfg.SetupRetryMax) * s.cfg.SettleWait
	)
	for {
		allSet := true
		for _, a := range s.appliances {
			if a.Baseline.Valid() {
				continue
			}
			p, err := a.readPower(ctx, s.cfg.ReadTimeout)
			if err != nil {
				return fmt.Errorf("sample running power for %s: %w", a.Name(), err)
			}
			if p > 2*a.Baseline.IdlePower {
				a.Baseline.RunningPower = p
				s.log.Infow("running power captured", "appliance", a.Name(), "running_power", p)
			} else {
				allSet = false
			}
		}
		if allSet {
			break
		}

		retryCount++
		s.log.Warnw("at least one appliance has no valid running power yet",
			"retry_count", retryCount, "elapsed", elapsed, "budget", budget)
		if err := sleepCtx(ctx, s.cfg.SetupProbeInterval); err != nil {
			return err
		}
		elapsed += s.cfg.SetupProbeInterval
		if elapsed > budget {
			for _, a := range s.appliances {
				if !a.Baseline.Valid() {
					s.log.Errorw("unable to establish running power",
						"appliance", a.Name(), "idle_power", a.Baseline.IdlePower)
				}
			}
			return ErrCalibrationFailed
		}
	}

	// Phase 4: persist the whole set atomically.
	out := make(map[string]models.Baseline, len(s.appliances))
	for _, a := range s.appliances {
		out[a.Name()] = a.Baseline
	}
	if err := s.baselines.SaveAll(ctx, out); err != nil {
		return fmt.Errorf("persist baselines: %w", err)
	}

	for _, a := range s.appliances {
		if err := s.events.Append(ctx, models.CycleEvent{
			Appliance:   a.Name(),
			Type:        models.EventCalibrated,
			Description: "baselines calibrated",
			Metadata: map[string]any{
				"idle_power":    a.Baseline.IdlePower,
				"running_power": a.Baseline.RunningPower,
				"retries":       retryCount,
			},
		}); err != nil {
			// History is best-effort; the baselines are already saved.
			s.log.Warnw("record calibration event failed", "appliance", a.Name(), "err", err)
		}
	}

	s.log.Infow("calibration complete", "appliances", len(s.appliances), "retries", retryCount)
	return nil
}
