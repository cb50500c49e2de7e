package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/lexipath/lexisync/internal/jobs"
	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/internal/scheduler"
	"github.com/lexipath/lexisync/internal/syncer"
)

// Application error codes.
const (
	codeNotAuthenticated = jrpc2.Code(-32001)
	codeUnknownJob       = jrpc2.Code(-32002)
	codeRemote           = jrpc2.Code(-32003)
	codeCache            = jrpc2.Code(-32004)
	codeInvalidParams    = jrpc2.Code(-32602)
)

const defaultHistoryLimit = 20

type VersionResult struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// JobItem is one entry of job.list.
type JobItem struct {
	Tag          string                `json:"tag"`
	Interval     string                `json:"interval,omitempty"`
	Cron         string                `json:"cron,omitempty"`
	Constraints  scheduler.Constraints `json:"constraints"`
	NextRunAt    time.Time             `json:"next_run_at"`
	RegisteredAt time.Time             `json:"registered_at"`
	Running      bool                  `json:"running"`
}

type JobListResult struct {
	Jobs []JobItem `json:"jobs"`
}

type TagParam struct {
	Tag string `json:"tag"`
}

type TodayParams struct {
	// Date defaults to the daemon's local today.
	Date string `json:"date,omitempty"`
}

type TodayResult struct {
	Record   *model.ContentRecord `json:"record"`
	Source   syncer.Source        `json:"source"`
	Attempts int                  `json:"attempts"`
}

type HistoryParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type HistoryResult struct {
	Content  []model.ContentRecord `json:"content"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
	Source   syncer.Source         `json:"source"`
	Attempts int                   `json:"attempts"`
}

type SweepResult struct {
	Evicted int64 `json:"evicted"`
}

type EmptyResult struct{}

func (s *Server) buildMethods() handler.Map {
	return handler.Map{
		"system.getVersion": handler.New(s.systemGetVersion),
		"job.list":          handler.New(s.jobList),
		"job.run":           handler.New(s.jobRun),
		"job.cancel":        handler.New(s.jobCancel),
		"content.today":     handler.New(s.contentToday),
		"content.history":   handler.New(s.contentHistory),
		"cache.sweep":       handler.New(s.cacheSweep),
	}
}

func (s *Server) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{Version: s.cfg.Version, Commit: s.cfg.Commit}, nil
}

func (s *Server) jobList(ctx context.Context) (*JobListResult, error) {
	infos, err := s.deps.Schedule.Jobs(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	items := make([]JobItem, 0, len(infos))
	for _, info := range infos {
		item := JobItem{
			Tag:          info.Tag,
			Cron:         info.Cron,
			Constraints:  info.Constraints,
			NextRunAt:    info.NextRunAt,
			RegisteredAt: info.RegisteredAt,
			Running:      info.Running,
		}
		if info.Interval > 0 {
			item.Interval = info.Interval.String()
		}
		items = append(items, item)
	}
	return &JobListResult{Jobs: items}, nil
}

func (s *Server) jobRun(ctx context.Context, p *TagParam) (*jobs.Outcome, error) {
	if p.Tag == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: tag"}
	}
	out, err := s.deps.Jobs.Run(ctx, p.Tag)
	if err != nil {
		return nil, rpcError(err)
	}
	return &out, nil
}

func (s *Server) jobCancel(ctx context.Context, p *TagParam) (*EmptyResult, error) {
	if p.Tag == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: tag"}
	}
	if err := s.deps.Schedule.CancelByTag(ctx, p.Tag); err != nil {
		return nil, rpcError(err)
	}
	s.log.Info("rpc: cancelled job %s", p.Tag)
	return &EmptyResult{}, nil
}

func (s *Server) contentToday(ctx context.Context, p *TodayParams) (*TodayResult, error) {
	day := model.DateOf(s.now())
	if p.Date != "" {
		d, err := model.ParseDate(p.Date)
		if err != nil {
			return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
		}
		day = d
	}
	owner, err := s.deps.Owners.Owner(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	res, err := s.deps.Content.ResolveToday(ctx, owner, day)
	if err != nil {
		return nil, rpcError(err)
	}
	return &TodayResult{Record: res.Record, Source: res.Source, Attempts: res.Attempts}, nil
}

func (s *Server) contentHistory(ctx context.Context, p *HistoryParams) (*HistoryResult, error) {
	if p.Limit < 0 || p.Offset < 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "limit and offset must not be negative"}
	}
	limit := p.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	owner, err := s.deps.Owners.Owner(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	res, err := s.deps.Content.ResolveHistoryPage(ctx, owner, limit, p.Offset)
	if err != nil {
		return nil, rpcError(err)
	}
	return &HistoryResult{
		Content:  res.Records,
		Limit:    res.Limit,
		Offset:   res.Offset,
		Source:   res.Source,
		Attempts: res.Attempts,
	}, nil
}

func (s *Server) cacheSweep(ctx context.Context) (*SweepResult, error) {
	n, err := s.deps.Sweeper.Sweep(ctx, s.now())
	if err != nil {
		return nil, rpcError(err)
	}
	return &SweepResult{Evicted: n}, nil
}

// rpcError maps an engine error to a JSON-RPC error whose message starts
// with the error kind.
func rpcError(err error) error {
	if errors.Is(err, jobs.ErrUnknownJob) {
		return &jrpc2.Error{Code: codeUnknownJob, Message: err.Error()}
	}
	kind := model.KindOf(err)
	code := codeRemote
	switch kind {
	case model.KindNotAuthenticated:
		code = codeNotAuthenticated
	case model.KindCacheUnavailable:
		code = codeCache
	case model.KindUnknown:
		code = jrpc2.Code(-32603)
	}
	return &jrpc2.Error{Code: code, Message: fmt.Sprintf("%s: %v", kind, err)}
}
