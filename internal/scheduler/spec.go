package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Tags of the recurring jobs.
const (
	TagDailyPrefetch = "daily_prefetch"
	TagWeeklyPlanner = "weekly_planner"
	TagCacheEviction = "cache_eviction"
)

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Constraints must hold when a job fires, otherwise the firing is deferred.
type Constraints struct {
	RequiresNetwork       bool `json:"requires_network"`
	RequiresBatteryNotLow bool `json:"requires_battery_not_low"`
}

// Policy decides what registering an already registered tag does.
type Policy int

const (
	// KeepExisting leaves the current schedule untouched.
	KeepExisting Policy = iota
	// Replace drops the current schedule and starts over.
	Replace
)

// At is a local time of day.
type At struct {
	Hour   int
	Minute int
}

// JobSpec describes a recurring job.
type JobSpec struct {
	Tag      string
	Interval time.Duration
	At       At
	// Weekday is the ISO weekday (1 = Monday ... 7 = Sunday); 0 means daily.
	Weekday int
	// Cron, when set, replaces At/Weekday/Interval with a 5-field expression.
	Cron        string
	Constraints Constraints
	Policy      Policy
}

func (s JobSpec) Validate() error {
	if s.Tag == "" {
		return errors.New("job spec: empty tag")
	}
	if s.Cron != "" {
		// gronx also accepts a seconds field; only 5 fields are allowed here.
		if len(strings.Fields(s.Cron)) != 5 || !gronx.IsValid(s.Cron) {
			return fmt.Errorf("job spec %s: invalid cron expression %q", s.Tag, s.Cron)
		}
		return nil
	}
	if s.Interval <= 0 {
		return fmt.Errorf("job spec %s: interval must be positive", s.Tag)
	}
	if s.At.Hour < 0 || s.At.Hour > 23 || s.At.Minute < 0 || s.At.Minute > 59 {
		return fmt.Errorf("job spec %s: invalid time %02d:%02d", s.Tag, s.At.Hour, s.At.Minute)
	}
	if s.Weekday < 0 || s.Weekday > 7 {
		return fmt.Errorf("job spec %s: invalid weekday %d", s.Tag, s.Weekday)
	}
	return nil
}

// InitialDelay is the wait from now until the spec's first firing.
func (s JobSpec) InitialDelay(now time.Time) (time.Duration, error) {
	if s.Cron != "" {
		next, err := gronx.NextTickAfter(s.Cron, now, true)
		if err != nil {
			return 0, fmt.Errorf("job spec %s: %w", s.Tag, err)
		}
		return next.Sub(now), nil
	}
	if s.Weekday != 0 {
		return WeeklyDelay(now, s.Weekday, s.At.Hour, s.At.Minute), nil
	}
	return DailyDelay(now, s.At.Hour, s.At.Minute), nil
}

// DefaultSpecs are the jobs every installation runs.
func DefaultSpecs() []JobSpec {
	return []JobSpec{
		{
			Tag:         TagDailyPrefetch,
			Interval:    Day,
			At:          At{Hour: 7},
			Constraints: Constraints{RequiresNetwork: true, RequiresBatteryNotLow: true},
		},
		{
			Tag:         TagWeeklyPlanner,
			Interval:    Week,
			At:          At{Hour: 5},
			Weekday:     7,
			Constraints: Constraints{RequiresNetwork: true, RequiresBatteryNotLow: true},
		},
		{
			// Daily at 03:00 local time.
			Tag:         TagCacheEviction,
			Cron:        "0 3 * * *",
			Constraints: Constraints{RequiresBatteryNotLow: true},
		},
	}
}
