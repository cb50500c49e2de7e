// Package syncer answers "today's content" and "history page N" cache-first
// and writes every successful remote result through to the cache before
// returning it.
package syncer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/internal/retry"
	"github.com/lexipath/lexisync/pkg/logger"
)

// Remote is the subset of the backend client the resolver uses.
type Remote interface {
	FetchToday(ctx context.Context, date model.Date) (*model.ContentRecord, error)
	FetchHistory(ctx context.Context, limit, offset int) (*model.HistoryPage, error)
	SubmitQuiz(ctx context.Context, sub model.QuizSubmission) (*model.QuizLog, error)
	GenerateWeeklyPlan(ctx context.Context) (*model.WeeklyPlan, error)
	UpsertProfile(ctx context.Context, upd model.ProfileUpdate) (*model.ProfileRecord, error)
}

// Cache is the subset of the local store the resolver uses.
type Cache interface {
	Get(ctx context.Context, owner string, date model.Date) (*model.ContentRecord, error)
	Put(ctx context.Context, rec *model.ContentRecord) error
	PutAll(ctx context.Context, recs []model.ContentRecord) error
	Recent(ctx context.Context, owner string, limit int) ([]model.ContentRecord, error)
	GetProfile(ctx context.Context, owner string) (*model.ProfileRecord, error)
	PutProfile(ctx context.Context, p *model.ProfileRecord) error
	LatestPlan(ctx context.Context, owner string) (*model.WeeklyPlan, error)
	PutPlan(ctx context.Context, plan *model.WeeklyPlan) error
	DeleteForOwner(ctx context.Context, owner string) error
}

// Observer is told about cache lookups and remote attempts.
type Observer interface {
	CacheLookup(op string, hit bool)
	RemoteAttempt(op string, err error)
}

// Source tells where a result came from.
type Source string

const (
	FromCache  Source = "cache"
	FromRemote Source = "remote"
)

// ContentResult is the answer of ResolveToday.
type ContentResult struct {
	Record   *model.ContentRecord
	Source   Source
	Attempts int
}

// HistoryResult is the answer of ResolveHistoryPage.
type HistoryResult struct {
	Records  []model.ContentRecord
	Limit    int
	Offset   int
	Source   Source
	Attempts int
}

// Resolver holds no authoritative state; the cache owns the records.
type Resolver struct {
	remote   Remote
	cache    Cache
	observer Observer
	log      logger.Logger
	retryOpt []retry.Option
	group    singleflight.Group
}

type Option func(*Resolver)

// WithObserver reports cache lookups and remote attempts to o.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithRetryOptions passes options to every retry loop, e.g. a fake sleeper.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(r *Resolver) { r.retryOpt = append(r.retryOpt, opts...) }
}

// New builds a Resolver over remote and cache. Without options it logs
// nothing and uses the real retry sleeper.
func New(remote Remote, cache Cache, opts ...Option) *Resolver {
	r := &Resolver{remote: remote, cache: cache, log: logger.NewNopLogger()}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) lookup(op string, hit bool) {
	if r.observer != nil {
		r.observer.CacheLookup(op, hit)
	}
}

func (r *Resolver) attempt(op string, err error) {
	if r.observer != nil {
		r.observer.RemoteAttempt(op, err)
	}
}

func (r *Resolver) retryOptions(op string) []retry.Option {
	notify := retry.WithNotify(func(attempt int, err error, delay time.Duration) {
		r.log.Warning("%s: attempt %d failed (%s), retrying in %s: %v", op, attempt, model.KindOf(err), delay, err)
	})
	return append([]retry.Option{notify}, r.retryOpt...)
}

// ResolveToday returns the owner's record for today. A cached record is
// returned without contacting the backend, however old it is.
func (r *Resolver) ResolveToday(ctx context.Context, owner string, today model.Date) (*ContentResult, error) {
	if owner == "" {
		return nil, model.NotAuthenticated("sync.resolve_today")
	}
	rec, err := r.cache.Get(ctx, owner, today)
	if err != nil {
		return nil, fmt.Errorf("resolve today: %w", err)
	}
	r.lookup("today", rec != nil)
	if rec != nil {
		return &ContentResult{Record: rec, Source: FromCache}, nil
	}

	// The shared fetch outlives any single caller; each caller stops
	// waiting when its own context ends.
	key := owner + "/" + today.String()
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.fetchToday(shared, owner, today)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("resolve today: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*ContentResult)
		return &out, nil
	}
}

func (r *Resolver) fetchToday(ctx context.Context, owner string, today model.Date) (*ContentResult, error) {
	rec, attempts, err := retry.Do(ctx, retry.Prefetch, func(ctx context.Context, _ int) (*model.ContentRecord, error) {
		rec, err := r.remote.FetchToday(ctx, today)
		r.attempt("fetch_today", err)
		return rec, err
	}, r.retryOptions("fetch_today")...)
	if err != nil {
		return nil, fmt.Errorf("resolve today: %w", err)
	}
	// The cache is keyed by the local owner and the requested day.
	rec.OwnerID = owner
	rec.Date = today
	if err := r.cache.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("resolve today: write through: %w", err)
	}
	return &ContentResult{Record: rec, Source: FromRemote, Attempts: attempts}, nil
}

// ResolveHistoryPage serves the first page from the cache when it has
// anything for the owner. Later pages always come from the backend.
func (r *Resolver) ResolveHistoryPage(ctx context.Context, owner string, limit, offset int) (*HistoryResult, error) {
	if owner == "" {
		return nil, model.NotAuthenticated("sync.resolve_history")
	}
	if offset == 0 {
		recs, err := r.cache.Recent(ctx, owner, limit)
		if err != nil {
			return nil, fmt.Errorf("resolve history: %w", err)
		}
		r.lookup("history", len(recs) > 0)
		if len(recs) > 0 {
			return &HistoryResult{Records: recs, Limit: limit, Offset: 0, Source: FromCache}, nil
		}
	}

	page, attempts, err := retry.Do(ctx, retry.Prefetch, func(ctx context.Context, _ int) (*model.HistoryPage, error) {
		page, err := r.remote.FetchHistory(ctx, limit, offset)
		r.attempt("fetch_history", err)
		return page, err
	}, r.retryOptions("fetch_history")...)
	if err != nil {
		return nil, fmt.Errorf("resolve history: %w", err)
	}
	for i := range page.Content {
		page.Content[i].OwnerID = owner
	}
	if offset == 0 {
		if err := r.cache.PutAll(ctx, page.Content); err != nil {
			return nil, fmt.Errorf("resolve history: write through: %w", err)
		}
	}
	return &HistoryResult{
		Records:  page.Content,
		Limit:    page.Limit,
		Offset:   page.Offset,
		Source:   FromRemote,
		Attempts: attempts,
	}, nil
}

// UpsertProfile always goes to the backend and caches the returned profile.
func (r *Resolver) UpsertProfile(ctx context.Context, owner string, upd model.ProfileUpdate) (*model.ProfileRecord, error) {
	if owner == "" {
		return nil, model.NotAuthenticated("sync.upsert_profile")
	}
	p, _, err := retry.Do(ctx, retry.Prefetch, func(ctx context.Context, _ int) (*model.ProfileRecord, error) {
		p, err := r.remote.UpsertProfile(ctx, upd)
		r.attempt("upsert_profile", err)
		return p, err
	}, r.retryOptions("upsert_profile")...)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	p.OwnerID = owner
	if err := r.cache.PutProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert profile: write through: %w", err)
	}
	return p, nil
}

// SubmitQuiz is sent exactly once; a lost answer is not replayed.
func (r *Resolver) SubmitQuiz(ctx context.Context, owner string, sub model.QuizSubmission) (*model.QuizLog, error) {
	if owner == "" {
		return nil, model.NotAuthenticated("sync.submit_quiz")
	}
	log, _, err := retry.Do(ctx, retry.Once, func(ctx context.Context, _ int) (*model.QuizLog, error) {
		log, err := r.remote.SubmitQuiz(ctx, sub)
		r.attempt("submit_quiz", err)
		return log, err
	}, r.retryOpt...)
	if err != nil {
		return nil, fmt.Errorf("submit quiz: %w", err)
	}
	return log, nil
}

// GenerateWeeklyPlan asks the backend for this week's plan and caches it.
func (r *Resolver) GenerateWeeklyPlan(ctx context.Context, owner string) (*model.WeeklyPlan, int, error) {
	if owner == "" {
		return nil, 0, model.NotAuthenticated("sync.generate_weekly_plan")
	}
	plan, attempts, err := retry.Do(ctx, retry.Planning, func(ctx context.Context, _ int) (*model.WeeklyPlan, error) {
		plan, err := r.remote.GenerateWeeklyPlan(ctx)
		r.attempt("generate_weekly_plan", err)
		return plan, err
	}, r.retryOptions("generate_weekly_plan")...)
	if err != nil {
		return nil, attempts, fmt.Errorf("generate weekly plan: %w", err)
	}
	plan.OwnerID = owner
	if err := r.cache.PutPlan(ctx, plan); err != nil {
		return nil, attempts, fmt.Errorf("generate weekly plan: write through: %w", err)
	}
	return plan, attempts, nil
}

// Profile reads the cached profile only.
func (r *Resolver) Profile(ctx context.Context, owner string) (*model.ProfileRecord, error) {
	if owner == "" {
		return nil, model.NotAuthenticated("sync.profile")
	}
	p, err := r.cache.GetProfile(ctx, owner)
	r.lookup("profile", p != nil)
	return p, err
}

// LatestPlan reads the newest cached plan only.
func (r *Resolver) LatestPlan(ctx context.Context, owner string) (*model.WeeklyPlan, error) {
	if owner == "" {
		return nil, model.NotAuthenticated("sync.latest_plan")
	}
	plan, err := r.cache.LatestPlan(ctx, owner)
	r.lookup("plan", plan != nil)
	return plan, err
}

// Purge drops everything cached for owner.
func (r *Resolver) Purge(ctx context.Context, owner string) error {
	if owner == "" {
		return model.NotAuthenticated("sync.purge")
	}
	return r.cache.DeleteForOwner(ctx, owner)
}
