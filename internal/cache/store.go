// Package cache is the durable local store for daily content, the owner
// profile and weekly plans. Every failure is reported as
// model.KindCacheUnavailable.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lexipath/lexisync/internal/model"
)

// Store is the sqlite-backed cache. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp CachedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over an already migrated database.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func unavailable(op string, err error) error {
	return model.E(model.KindCacheUnavailable, op, err)
}

const contentColumns = `id, owner_id, date_key, word, meaning, examples_target, examples_base, created_at, cached_at`

// Get returns the record for (owner, date), or nil when there is none.
func (s *Store) Get(ctx context.Context, owner string, date model.Date) (*model.ContentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM daily_content WHERE owner_id = ? AND date_key = ?`,
		owner, date.String())
	rec, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("cache.get", err)
	}
	return rec, nil
}

// Put inserts rec, replacing any row with the same id or the same
// (owner, date). CachedAt is stamped from the store clock.
func (s *Store) Put(ctx context.Context, rec *model.ContentRecord) error {
	if err := putContent(ctx, s.db, rec, s.now()); err != nil {
		return unavailable("cache.put", err)
	}
	return nil
}

// PutAll upserts recs in a single transaction.
func (s *Store) PutAll(ctx context.Context, recs []model.ContentRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("cache.put_all", err)
	}
	defer tx.Rollback()
	now := s.now()
	for i := range recs {
		if err := putContent(ctx, tx, &recs[i], now); err != nil {
			return unavailable("cache.put_all", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("cache.put_all", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putContent(ctx context.Context, ex execer, rec *model.ContentRecord, now time.Time) error {
	if rec.OwnerID == "" || rec.Date.IsZero() {
		return fmt.Errorf("record %q has no owner or date", rec.ID)
	}
	target, err := encodeList(rec.ExamplesTarget)
	if err != nil {
		return err
	}
	base, err := encodeList(rec.ExamplesBase)
	if err != nil {
		return err
	}
	rec.CachedAt = now
	_, err = ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO daily_content (`+contentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.Date.String(), rec.Word, rec.Meaning,
		target, base, formatTime(rec.CreatedAt), now.UnixMilli())
	return err
}

// Recent returns the owner's newest records by date, at most limit of them.
func (s *Store) Recent(ctx context.Context, owner string, limit int) ([]model.ContentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM daily_content WHERE owner_id = ? ORDER BY date_key DESC LIMIT ?`,
		owner, limit)
	if err != nil {
		return nil, unavailable("cache.recent", err)
	}
	defer rows.Close()

	var out []model.ContentRecord
	for rows.Next() {
		rec, err := scanContent(rows)
		if err != nil {
			return nil, unavailable("cache.recent", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("cache.recent", err)
	}
	return out, nil
}

// DeleteOlderThan removes every content row cached before cutoff, across
// owners, and returns how many were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM daily_content WHERE cached_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, unavailable("cache.delete_older_than", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("cache.delete_older_than", err)
	}
	return n, nil
}

// DeleteForOwner removes the owner's content, profile and plans atomically.
func (s *Store) DeleteForOwner(ctx context.Context, owner string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("cache.delete_for_owner", err)
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM daily_content WHERE owner_id = ?`,
		`DELETE FROM profiles WHERE owner_id = ?`,
		`DELETE FROM weekly_plans WHERE owner_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, owner); err != nil {
			return unavailable("cache.delete_for_owner", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("cache.delete_for_owner", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContent(sc scanner) (*model.ContentRecord, error) {
	var (
		rec                model.ContentRecord
		dateKey, createdAt string
		target, base       string
		cachedAt           int64
	)
	err := sc.Scan(&rec.ID, &rec.OwnerID, &dateKey, &rec.Word, &rec.Meaning, &target, &base, &createdAt, &cachedAt)
	if err != nil {
		return nil, err
	}
	if rec.Date, err = model.ParseDate(dateKey); err != nil {
		return nil, err
	}
	if rec.ExamplesTarget, err = decodeList(target); err != nil {
		return nil, err
	}
	if rec.ExamplesBase, err = decodeList(base); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	rec.CachedAt = time.UnixMilli(cachedAt)
	return &rec, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("corrupt list column: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
