package notify

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// QuietHours is a [start, stop) time-of-day window during which finish
// notifications are suppressed. Overnight windows (start after stop,
// e.g. 22:00-06:00) wrap around midnight.
type QuietHours struct {
	start int // minutes since midnight
	stop  int
}

// ParseQuietHours builds a window from "HH:MM" strings.
func ParseQuietHours(start, stop string) (*QuietHours, error) {
	s, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("quiet hours start: %w", err)
	}
	e, err := parseClock(stop)
	if err != nil {
		return nil, fmt.Errorf("quiet hours stop: %w", err)
	}
	return &QuietHours{start: s, stop: e}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t's time of day falls inside the window.
// An empty window (start == stop) contains nothing.
func (q *QuietHours) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	switch {
	case q.start == q.stop:
		return false
	case q.start < q.stop:
		return m >= q.start && m < q.stop
	default: // overnight wraparound
		return m >= q.start || m < q.stop
	}
}

func (q *QuietHours) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", q.start/60, q.start%60, q.stop/60, q.stop%60)
}
