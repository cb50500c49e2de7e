package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lexipath/lexisync/internal/model"
)

// GetProfile returns the owner's cached profile, or nil when there is none.
func (s *Store) GetProfile(ctx context.Context, owner string) (*model.ProfileRecord, error) {
	var (
		p                              model.ProfileRecord
		targetLang, baseLang, industry sql.NullString
		createdAt, updatedAt           string
		goal, level                    string
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT id, owner_id, goal_type, target_lang, base_lang, level, industry_sector, created_at, updated_at
        FROM profiles WHERE owner_id = ?`, owner).
		Scan(&p.ID, &p.OwnerID, &goal, &targetLang, &baseLang, &level, &industry, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("cache.get_profile", err)
	}
	p.GoalType = model.GoalType(goal)
	p.Level = model.Level(level)
	p.TargetLang = nullable(targetLang)
	p.BaseLang = nullable(baseLang)
	p.IndustrySector = nullable(industry)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, unavailable("cache.get_profile", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, unavailable("cache.get_profile", err)
	}
	return &p, nil
}

// PutProfile replaces the owner's profile.
func (s *Store) PutProfile(ctx context.Context, p *model.ProfileRecord) error {
	if p.OwnerID == "" {
		return unavailable("cache.put_profile", errors.New("profile has no owner"))
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO profiles
            (owner_id, id, goal_type, target_lang, base_lang, level, industry_sector, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.ID, string(p.GoalType), p.TargetLang, p.BaseLang, string(p.Level), p.IndustrySector,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return unavailable("cache.put_profile", err)
	}
	return nil
}

// LatestPlan returns the owner's plan with the newest week start, or nil.
func (s *Store) LatestPlan(ctx context.Context, owner string) (*model.WeeklyPlan, error) {
	var (
		plan                 model.WeeklyPlan
		weekStart, createdAt string
		items                string
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT id, owner_id, week_start, items, created_at
        FROM weekly_plans WHERE owner_id = ?
        ORDER BY week_start DESC LIMIT 1`, owner).
		Scan(&plan.ID, &plan.OwnerID, &weekStart, &items, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("cache.latest_plan", err)
	}
	if plan.WeekStart, err = model.ParseDate(weekStart); err != nil {
		return nil, unavailable("cache.latest_plan", err)
	}
	if err := json.Unmarshal([]byte(items), &plan.Items); err != nil {
		return nil, unavailable("cache.latest_plan", fmt.Errorf("corrupt plan items: %w", err))
	}
	if plan.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, unavailable("cache.latest_plan", err)
	}
	return &plan, nil
}

// PutPlan replaces the plan for (owner, week start).
func (s *Store) PutPlan(ctx context.Context, plan *model.WeeklyPlan) error {
	if plan.OwnerID == "" || plan.WeekStart.IsZero() {
		return unavailable("cache.put_plan", errors.New("plan has no owner or week start"))
	}
	items := plan.Items
	if items == nil {
		items = []model.PlanItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return unavailable("cache.put_plan", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO weekly_plans (id, owner_id, week_start, items, created_at, cached_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.OwnerID, plan.WeekStart.String(), string(b), formatTime(plan.CreatedAt), s.now().UnixMilli())
	if err != nil {
		return unavailable("cache.put_plan", err)
	}
	return nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
