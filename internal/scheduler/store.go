package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// JobStore persists host registrations.
type JobStore interface {
	LoadJobs(ctx context.Context) ([]Registration, error)
	SaveJob(ctx context.Context, r Registration) error
	DeleteJob(ctx context.Context, tag string) error
}

// SQLStore keeps registrations in the scheduled_jobs table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) LoadJobs(ctx context.Context) ([]Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT tag, interval_ms, cron_expr, requires_network, requires_battery_not_low, next_run_at, registered_at
        FROM scheduled_jobs ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var (
			r                     Registration
			intervalMS, next, reg int64
			network, battery      int
		)
		if err := rows.Scan(&r.Tag, &intervalMS, &r.Cron, &network, &battery, &next, &reg); err != nil {
			return nil, fmt.Errorf("load jobs: %w", err)
		}
		r.Interval = time.Duration(intervalMS) * time.Millisecond
		r.Constraints = Constraints{RequiresNetwork: network != 0, RequiresBatteryNotLow: battery != 0}
		r.NextRunAt = time.UnixMilli(next)
		r.RegisteredAt = time.UnixMilli(reg)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return out, nil
}

func (s *SQLStore) SaveJob(ctx context.Context, r Registration) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO scheduled_jobs
            (tag, interval_ms, cron_expr, requires_network, requires_battery_not_low, next_run_at, registered_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Tag, r.Interval.Milliseconds(), r.Cron,
		boolInt(r.Constraints.RequiresNetwork), boolInt(r.Constraints.RequiresBatteryNotLow),
		r.NextRunAt.UnixMilli(), r.RegisteredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save job %s: %w", r.Tag, err)
	}
	return nil
}

func (s *SQLStore) DeleteJob(ctx context.Context, tag string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE tag = ?`, tag); err != nil {
		return fmt.Errorf("delete job %s: %w", tag, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// MemStore is a JobStore that forgets everything on restart.
type MemStore struct {
	mu   sync.Mutex
	jobs map[string]Registration
}

func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[string]Registration)}
}

func (m *MemStore) LoadJobs(ctx context.Context) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Registration, 0, len(m.jobs))
	for _, r := range m.jobs {
		out = append(out, r)
	}
	return out, nil
}

func (m *MemStore) SaveJob(ctx context.Context, r Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[r.Tag] = r
	return nil
}

func (m *MemStore) DeleteJob(ctx context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, tag)
	return nil
}
