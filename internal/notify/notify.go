// Package notify fans a "cycle finished" event out over the configured
// notification channels. Channels are independent and fire-and-forget:
// an unconfigured channel is skipped, a failing channel is logged and
// never aborts the others.
package notify

import (
	"context"
	"time"

	"laundry_notifier/internal/logger"
)

// Notifier is one delivery channel for a finish notification.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, title, body string) error
}

// Dispatcher delivers one finish event through every configured channel,
// unless the current time falls inside the quiet-hours window.
type Dispatcher struct {
	channels []Notifier
	quiet    *QuietHours // nil means no suppression window
	now      func() time.Time
	log      *logger.Logger
}

func NewDispatcher(channels []Notifier, quiet *QuietHours, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		quiet:    quiet,
		now:      time.Now,
		log:      log,
	}
}

// Channels returns how many channels are configured.
func (d *Dispatcher) Channels() int { return len(d.channels) }

// Dispatch attempts every channel with the given title and body.
// It returns false when the quiet-hours window suppressed the event;
// the check happens once, before any channel is attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, title, body string) bool {
	if d.quiet != nil && d.quiet.Contains(d.now()) {
		d.log.Infow("notification suppressed by quiet hours", "title", title, "window", d.quiet.String())
		return false
	}
	for _, ch := range d.channels {
		if err := ch.Notify(ctx, title, body); err != nil {
			d.log.Errorw("notification channel failed", "channel", ch.Name(), "title", title, "err", err)
			continue
		}
		d.log.Infow("notification sent", "channel", ch.Name(), "title", title)
	}
	return true
}
