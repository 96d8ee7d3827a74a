// Package calendar computes the trading date a data update applies to.
package calendar

import (
	"time"

	"github.com/wonny/futsync/pkg/config"
)

// Calendar resolves wall-clock time to the last valid trading date.
// The cutover hours come from configuration, not hardcoded market physics.
type Calendar struct {
	earlyCutoffHour int
	closeHour       int
}

// New creates a Calendar from config.
func New(cfg config.CalendarConfig) Calendar {
	return Calendar{
		earlyCutoffHour: cfg.EarlyCutoffHour,
		closeHour:       cfg.CloseHour,
	}
}

// LastTradingDate returns the most recent trading date whose data can be
// expected to exist at the given wall-clock instant.
//
//   - Saturday/Sunday resolve to the preceding Friday.
//   - On a business day before the early cutoff (default 15:00) the
//     market day is not settled, so the prior business day is returned.
//   - From the close hour (default 17:00) onward the current day counts.
//   - Between the two cutoffs the day is treated as settled.
func (c Calendar) LastTradingDate(now time.Time) time.Time {
	today := midnight(now)

	switch now.Weekday() {
	case time.Saturday:
		return today.AddDate(0, 0, -1)
	case time.Sunday:
		return today.AddDate(0, 0, -2)
	}

	if now.Hour() >= c.closeHour {
		return today
	}

	if now.Hour() < c.earlyCutoffHour {
		if now.Weekday() == time.Monday {
			return today.AddDate(0, 0, -3)
		}
		return today.AddDate(0, 0, -1)
	}

	return today
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
