package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"laundry_notifier/internal/logger"
	"laundry_notifier/internal/logic"
	"laundry_notifier/internal/models"
	"laundry_notifier/internal/repository"
)

// ErrRetriesExhausted means the monitor loop hit its consecutive-failure
// budget and gave up.
var ErrRetriesExhausted = errors.New("consecutive poll failures exceeded retry budget")

// MonitorService is the normal-mode poll loop. Appliances are visited
// in a fixed sequence; the loop is the sole writer of their state. The
// mutex only guards the read-only status snapshot served to the HTTP
// and WebSocket layers.
type MonitorService struct {
	appliances []*Appliance
	baselines  repository.BaselineRepo
	events     repository.EventRepo
	notifier   FinishNotifier
	cfg        Config
	log        *logger.Logger

	mu       sync.RWMutex
	statuses map[string]models.ApplianceStatus
}

func NewMonitorService(appliances []*Appliance, baselines repository.BaselineRepo, events repository.EventRepo, notifier FinishNotifier, cfg Config, log *logger.Logger) *MonitorService {
	return &MonitorService{
		appliances: appliances,
		baselines:  baselines,
		events:     events,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
		statuses:   make(map[string]models.ApplianceStatus),
	}
}

// Run loads the persisted baselines and polls until the context is
// cancelled, the consecutive-failure budget is exhausted, or the
// optional iteration cap is reached.
func (s *MonitorService) Run(ctx context.Context) error {
	if err := s.loadBaselines(ctx); err != nil {
		return err
	}

	var (
		failures   int
		iterations int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.pollOnce(ctx); err != nil {
			// Parent cancellation is a shutdown, not a device failure.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			s.log.Errorw("poll iteration failed", "err", err, "consecutive_failures", failures, "max", s.cfg.RetryMax)
			s.recordError(ctx, err)
			if failures >= s.cfg.RetryMax {
				return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, failures, err)
			}
			if err := sleepCtx(ctx, s.cfg.RetryBackoff); err != nil {
				return err
			}
		} else {
			failures = 0
		}

		iterations++
		if s.cfg.MaxIterations > 0 && iterations >= s.cfg.MaxIterations {
			return nil
		}
		if err := sleepCtx(ctx, s.cfg.ProbeInterval); err != nil {
			return err
		}
	}
}

// loadBaselines reads every appliance's persisted baseline up front.
// A missing section means the appliance was never calibrated; the loop
// refuses to start.
func (s *MonitorService) loadBaselines(ctx context.Context) error {
	for _, a := range s.appliances {
		b, err := s.baselines.Load(ctx, a.Name())
		if err != nil {
			return fmt.Errorf("load baseline: %w (run setup mode first?)", err)
		}
		a.Baseline = b
		a.State = models.StateIdle
		s.updateStatus(a, 0)
		s.log.Infow("baseline loaded", "appliance", a.Name(),
			"idle_power", b.IdlePower, "running_power", b.RunningPower)
	}
	return nil
}

// pollOnce samples every appliance once and handles finish detection.
// The first device error aborts the iteration; the caller owns retries.
func (s *MonitorService) pollOnce(ctx context.Context) error {
	for _, a := range s.appliances {
		power, err := a.readPower(ctx, s.cfg.ReadTimeout)
		if err != nil {
			return fmt.Errorf("read power for %s: %w", a.Name(), err)
		}

		next := logic.Transition(a.State, power, a.Baseline.IdlePower)
		if next != a.State {
			s.log.Infow("appliance state changed", "appliance", a.Name(),
				"from", a.State, "to", next, "power", power)
		}
		a.State = next

		if a.State == models.StateFinished {
			s.finish(ctx, a, power)
			// Reset so the next cycle can be detected again.
			a.State = models.StateIdle
		}
		s.updateStatus(a, power)
	}
	return nil
}

// finish dispatches the notification and records the cycle event.
func (s *MonitorService) finish(ctx context.Context, a *Appliance, power float64) {
	title := fmt.Sprintf("%s finished", a.Name())
	body := fmt.Sprintf("The %s cycle is done.", a.Info.Type)
	notified := s.notifier.Dispatch(ctx, title, body)

	if err := s.events.Append(ctx, models.CycleEvent{
		Appliance:   a.Name(),
		Type:        models.EventCycleFinished,
		Description: title,
		Metadata: map[string]any{
			"power":    power,
			"notified": notified,
		},
	}); err != nil {
		s.log.Warnw("record cycle event failed", "appliance", a.Name(), "err", err)
	}
}

func (s *MonitorService) recordError(ctx context.Context, pollErr error) {
	if err := s.events.Append(ctx, models.CycleEvent{
		Type:        models.EventError,
		Description: pollErr.Error(),
	}); err != nil {
		s.log.Warnw("record error event failed", "err", err)
	}
}

func (s *MonitorService) updateStatus(a *Appliance, power float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[a.Name()] = models.ApplianceStatus{
		Name:         a.Name(),
		Type:         a.Info.Type,
		State:        a.State,
		IdlePower:    a.Baseline.IdlePower,
		RunningPower: a.Baseline.RunningPower,
		LastPower:    power,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Status returns a snapshot of every appliance in resolution order.
func (s *MonitorService) Status() []models.ApplianceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ApplianceStatus, 0, len(s.appliances))
	for _, a := range s.appliances {
		if st, ok := s.statuses[a.Name()]; ok {
			out = append(out, st)
		}
	}
	return out
}
