package service

import (
	"context"
	"time"

	"laundry_notifier/internal/logger"
	"laundry_notifier/internal/models"
	"laundry_notifier/internal/repository"
)

// Calibration learns per-appliance power baselines and persists them.
// One-shot; run instead of the monitor loop in setup mode.
type Calibration interface {
	Run(ctx context.Context) error
}

// Monitor is the long-running poll loop: sample every appliance, notify
// on FINISHED, retry through transient device errors. Stop via context
// cancellation in main() for graceful shutdown.
type Monitor interface {
	Run(ctx context.Context) error
	Status() []models.ApplianceStatus
}

// EventLog exposes the append-only cycle history with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.CycleEvent, error)
}

// LogFilter narrows an event history query.
type LogFilter struct {
	From      time.Time
	To        time.Time
	Appliance string
	Type      string
}

// FinishNotifier is the notification dispatch the monitor invokes for a
// finished cycle. Returns false when quiet hours suppressed the event.
type FinishNotifier interface {
	Dispatch(ctx context.Context, title, body string) bool
}

// Config carries the timing and retry knobs shared by calibration and
// the monitor loop.
type Config struct {
	// ProbeInterval is the sleep between normal-mode poll iterations.
	ProbeInterval time.Duration
	// SetupProbeInterval is the sleep between calibration retry probes.
	SetupProbeInterval time.Duration
	// SettleWait models the operator's time to start the appliance
	// between the idle sample and the first running probe.
	SettleWait time.Duration
	// SetupRetryMax bounds calibration: the run fails once elapsed
	// probe time exceeds SetupRetryMax * SettleWait.
	SetupRetryMax int
	// PlugSettleTime is the delay after turning a plug on before its
	// power readings are trusted.
	PlugSettleTime time.Duration
	// ReadTimeout bounds a single device power read.
	ReadTimeout time.Duration
	// RetryMax is the consecutive-failure budget of the monitor loop.
	RetryMax int
	// RetryBackoff is the sleep after a failed poll iteration.
	RetryBackoff time.Duration
	// MaxIterations, when positive, stops the monitor loop after that
	// many iterations. Zero means run until cancelled.
	MaxIterations int
}

// DefaultConfig mirrors the tuning the notifier has always shipped with.
func DefaultConfig() Config {
	return Config{
		ProbeInterval:      5 * time.Minute,
		SetupProbeInterval: 30 * time.Second,
		SettleWait:         60 * time.Second,
		SetupRetryMax:      5,
		PlugSettleTime:     10 * time.Second,
		ReadTimeout:        15 * time.Second,
		RetryMax:           3,
		RetryBackoff:       30 * time.Second,
	}
}

// Service aggregates all sub-services.
type Service struct {
	Calibration
	Monitor
	EventLog
}

// Deps is everything NewService needs to wire the sub-services.
type Deps struct {
	Repos      *repository.Repository
	Appliances []*Appliance
	Notifier   FinishNotifier
	Cfg        Config
	Log        *logger.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		Calibration: NewCalibrationService(d.Appliances, d.Repos.Baselines, d.Repos.Events, d.Cfg, d.Log),
		Monitor:     NewMonitorService(d.Appliances, d.Repos.Baselines, d.Repos.Events, d.Notifier, d.Cfg, d.Log),
		EventLog:    NewEventLogService(d.Repos.Events),
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
