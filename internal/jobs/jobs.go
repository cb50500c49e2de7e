package jobs

import (
	"context"
	"strconv"
	"time"

	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/internal/syncer"
)

// Owners yields the signed-in owner id.
type Owners interface {
	Owner(ctx context.Context) (string, error)
}

type TodayResolver interface {
	ResolveToday(ctx context.Context, owner string, today model.Date) (*syncer.ContentResult, error)
}

type Planner interface {
	GenerateWeeklyPlan(ctx context.Context, owner string) (*model.WeeklyPlan, int, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// PlanningWeekday is the ISO weekday the weekly planner does its work on.
const PlanningWeekday = 7

// DailyPrefetch resolves today's content so it is cached before the owner
// opens the app. onPrefetched may be nil.
func DailyPrefetch(owners Owners, r TodayResolver, now func() time.Time, onPrefetched func(owner string, rec *model.ContentRecord)) JobFunc {
	return func(ctx context.Context) (map[string]string, int, error) {
		today := model.DateOf(now())
		data := map[string]string{"prefetch_date": today.String()}
		owner, err := owners.Owner(ctx)
		if err != nil {
			return data, 0, err
		}
		res, err := r.ResolveToday(ctx, owner, today)
		if err != nil {
			return data, model.AttemptsOf(err), err
		}
		data["content_word"] = res.Record.Word
		data["source"] = string(res.Source)
		if onPrefetched != nil {
			onPrefetched(owner, res.Record)
		}
		return data, res.Attempts, nil
	}
}

// WeeklyPlanner generates the week's plan on Sundays and does nothing on
// other days.
func WeeklyPlanner(owners Owners, p Planner, now func() time.Time) JobFunc {
	return func(ctx context.Context) (map[string]string, int, error) {
		owner, err := owners.Owner(ctx)
		if err != nil {
			return nil, 0, err
		}
		today := model.DateOf(now())
		if today.ISOWeekday() != PlanningWeekday {
			return map[string]string{"skipped": "not planning day"}, 0, nil
		}
		data := map[string]string{"week_start": today.String()}
		plan, attempts, err := p.GenerateWeeklyPlan(ctx, owner)
		data["retry_count"] = strconv.Itoa(attempts)
		if err != nil {
			return data, attempts, err
		}
		data["generation_date"] = today.String()
		data["plan_id"] = plan.ID
		return data, attempts, nil
	}
}

// CacheEviction drops cached content older than the retention window.
func CacheEviction(s Sweeper, now func() time.Time) JobFunc {
	return func(ctx context.Context) (map[string]string, int, error) {
		n, err := s.Sweep(ctx, now())
		if err != nil {
			return nil, 1, err
		}
		return map[string]string{"evicted": strconv.FormatInt(n, 10)}, 1, nil
	}
}
