package scheduler

import (
	"time"

	"github.com/lexipath/lexisync/internal/model"
)

// NextDaily returns the first instant at or after now whose local wall clock
// reads hour:minute, in now's location.
func NextDaily(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if next.Before(now) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// NextWeekly returns the first instant at or after now falling on isoWeekday
// (1 = Monday ... 7 = Sunday) at hour:minute local time. When today is the
// target day but the time has passed, the following week is used.
func NextWeekly(now time.Time, isoWeekday, hour, minute int) time.Time {
	y, m, d := now.Date()
	days := (isoWeekday - model.ISOWeekday(now.Weekday()) + 7) % 7
	next := time.Date(y, m, d+days, hour, minute, 0, 0, now.Location())
	if next.Before(now) {
		next = time.Date(y, m, d+days+7, hour, minute, 0, 0, now.Location())
	}
	return next
}

// DailyDelay is the wait from now until NextDaily.
func DailyDelay(now time.Time, hour, minute int) time.Duration {
	return NextDaily(now, hour, minute).Sub(now)
}

// WeeklyDelay is the wait from now until NextWeekly.
func WeeklyDelay(now time.Time, isoWeekday, hour, minute int) time.Duration {
	return NextWeekly(now, isoWeekday, hour, minute).Sub(now)
}
