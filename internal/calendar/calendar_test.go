package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/futsync/pkg/config"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hour, min int) time.Time {
	return time.Date(y, m, d, hour, min, 0, 0, time.UTC)
}

func TestLastTradingDate(t *testing.T) {
	cal := New(config.CalendarConfig{EarlyCutoffHour: 15, CloseHour: 17})

	// 2026-01-05 is a Monday.
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"saturday morning", at(2026, 1, 10, 9, 0), date(2026, 1, 9)},
		{"saturday evening", at(2026, 1, 10, 21, 0), date(2026, 1, 9)},
		{"sunday", at(2026, 1, 11, 12, 0), date(2026, 1, 9)},
		{"monday before early cutoff", at(2026, 1, 5, 9, 30), date(2026, 1, 2)},
		{"monday after close", at(2026, 1, 5, 17, 0), date(2026, 1, 5)},
		{"tuesday before early cutoff", at(2026, 1, 6, 14, 59), date(2026, 1, 5)},
		{"tuesday between cutoffs", at(2026, 1, 6, 15, 0), date(2026, 1, 6)},
		{"tuesday between cutoffs late", at(2026, 1, 6, 16, 59), date(2026, 1, 6)},
		{"friday after close", at(2026, 1, 9, 23, 0), date(2026, 1, 9)},
		{"friday early morning", at(2026, 1, 9, 8, 0), date(2026, 1, 8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.LastTradingDate(tt.now))
		})
	}
}

func TestLastTradingDate_CustomCutoffs(t *testing.T) {
	cal := New(config.CalendarConfig{EarlyCutoffHour: 12, CloseHour: 20})

	// Tuesday 13:00 with a 12:00 early cutoff already counts as settled.
	assert.Equal(t, date(2026, 1, 6), cal.LastTradingDate(at(2026, 1, 6, 13, 0)))
	// Tuesday 19:00 is still before the 20:00 close but inside the settled band.
	assert.Equal(t, date(2026, 1, 6), cal.LastTradingDate(at(2026, 1, 6, 19, 0)))
	// Tuesday 11:00 falls back to Monday.
	assert.Equal(t, date(2026, 1, 5), cal.LastTradingDate(at(2026, 1, 6, 11, 0)))
}

func TestLastTradingDate_AlwaysMidnight(t *testing.T) {
	cal := New(config.CalendarConfig{EarlyCutoffHour: 15, CloseHour: 17})
	got := cal.LastTradingDate(at(2026, 1, 7, 18, 45))
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, 0, got.Minute())
}
