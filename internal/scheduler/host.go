package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"

	"github.com/lexipath/lexisync/pkg/logger"
)

const (
	maxSleepCap = 60 * time.Second
	// DefaultDeferInterval is how long a firing with unmet constraints waits
	// before the constraints are checked again.
	DefaultDeferInterval = time.Minute
)

var (
	ErrHostClosed     = errors.New("scheduler: host closed")
	ErrHostNotStarted = errors.New("scheduler: host not started")
	ErrAlreadyStarted = errors.New("scheduler: host already started")
)

// Runner executes one firing of tag.
type Runner func(ctx context.Context, tag string)

// ConstraintChecker reports why c does not hold right now, or nil.
type ConstraintChecker interface {
	Check(ctx context.Context, c Constraints) error
}

type enqueueReq struct {
	work  Work
	reply chan enqueueReply
}

type enqueueReply struct {
	added bool
	err   error
}

type cancelReq struct {
	tag   string
	reply chan error
}

// Host is the in-process Facility. One goroutine owns the heap and the
// registrations; every firing runs in its own goroutine. A tag never has two
// executions at once, distinct tags run concurrently.
type Host struct {
	store         JobStore
	run           Runner
	checker       ConstraintChecker
	log           logger.Logger
	deferInterval time.Duration
	onDefer       func(tag string, err error)
	now           func() time.Time

	enqueueCh chan enqueueReq
	cancelCh  chan cancelReq
	listCh    chan chan []JobInfo
	deferCh   chan event
	doneCh    chan string

	ctx     context.Context
	started atomic.Bool
	stopped chan struct{}
	wg      sync.WaitGroup
}

type HostOption func(*Host)

// WithChecker sets the constraint checker consulted before every firing.
// Without one, constraints are treated as met.
func WithChecker(c ConstraintChecker) HostOption {
	return func(h *Host) { h.checker = c }
}

// WithHostLogger sets the host logger.
func WithHostLogger(l logger.Logger) HostOption {
	return func(h *Host) { h.log = l }
}

// WithDeferInterval overrides DefaultDeferInterval.
func WithDeferInterval(d time.Duration) HostOption {
	return func(h *Host) { h.deferInterval = d }
}

// WithDeferHook is called every time a firing is postponed.
func WithDeferHook(fn func(tag string, err error)) HostOption {
	return func(h *Host) { h.onDefer = fn }
}

// NewHost builds a stopped Host. run is called for every firing whose
// constraints hold.
func NewHost(store JobStore, run Runner, opts ...HostOption) *Host {
	h := &Host{
		store:         store,
		run:           run,
		log:           logger.NewNopLogger(),
		deferInterval: DefaultDeferInterval,
		now:           time.Now,
		enqueueCh:     make(chan enqueueReq),
		cancelCh:      make(chan cancelReq),
		listCh:        make(chan chan []JobInfo),
		deferCh:       make(chan event, 16),
		doneCh:        make(chan string, 16),
		stopped:       make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Start loads the persisted registrations and starts the host goroutine.
// Registrations whose trigger passed while the host was down fire at once.
// The host stops when ctx is cancelled; jobs receive a context derived from it.
func (h *Host) Start(ctx context.Context) error {
	regs, err := h.store.LoadJobs(ctx)
	if err != nil {
		return err
	}
	if !h.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	h.ctx = ctx
	go h.loop(regs)
	return nil
}

// Done is closed once the host goroutine has exited.
func (h *Host) Done() <-chan struct{} {
	return h.stopped
}

// Wait blocks until every execution started by the host has returned.
func (h *Host) Wait() {
	h.wg.Wait()
}

// EnqueueUniquePeriodic persists w and schedules its first firing after
// w.InitialDelay. With KeepExisting, an already registered tag is left alone
// and false is returned.
func (h *Host) EnqueueUniquePeriodic(ctx context.Context, w Work) (bool, error) {
	if !h.started.Load() {
		return false, ErrHostNotStarted
	}
	req := enqueueReq{work: w, reply: make(chan enqueueReply, 1)}
	select {
	case h.enqueueCh <- req:
	case <-h.stopped:
		return false, ErrHostClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
	r := <-req.reply
	return r.added, r.err
}

// CancelByTag drops the registration of tag. A running execution is not
// interrupted.
func (h *Host) CancelByTag(ctx context.Context, tag string) error {
	if !h.started.Load() {
		return ErrHostNotStarted
	}
	req := cancelReq{tag: tag, reply: make(chan error, 1)}
	select {
	case h.cancelCh <- req:
	case <-h.stopped:
		return ErrHostClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.reply
}

// Jobs lists the registered jobs ordered by tag.
func (h *Host) Jobs(ctx context.Context) ([]JobInfo, error) {
	if !h.started.Load() {
		return nil, ErrHostNotStarted
	}
	reply := make(chan []JobInfo, 1)
	select {
	case h.listCh <- reply:
	case <-h.stopped:
		return nil, ErrHostClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return <-reply, nil
}

// loop is the active object. Only it touches jobs, running and the heap.
func (h *Host) loop(regs []Registration) {
	defer close(h.stopped)

	jobs := make(map[string]*Registration, len(regs))
	running := make(map[string]bool)
	hp := &eventHeap{}

	now := h.now()
	for i := range regs {
		r := regs[i]
		jobs[r.Tag] = &r
		at := r.NextRunAt
		if at.Before(now) {
			h.log.Info("scheduler: %s missed its run at %s, firing now", r.Tag, at.Format(time.RFC3339))
			at = now
		}
		heapPush(hp, event{Tag: r.Tag, TriggerAt: at})
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if hp.Len() == 0 {
			return nil
		}
		dur := (*hp)[0].TriggerAt.Sub(h.now())
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}
	timerCh := resetTimer()

	for {
		select {
		case <-h.ctx.Done():
			return

		case req := <-h.enqueueCh:
			added, err := h.enqueue(jobs, hp, req.work)
			req.reply <- enqueueReply{added: added, err: err}
			timerCh = resetTimer()

		case req := <-h.cancelCh:
			delete(jobs, req.tag)
			heapRemove(hp, req.tag, nil)
			req.reply <- h.store.DeleteJob(h.ctx, req.tag)
			timerCh = resetTimer()

		case reply := <-h.listCh:
			reply <- snapshot(jobs, running)

		case e := <-h.deferCh:
			if _, ok := jobs[e.Tag]; ok {
				heapPush(hp, e)
				timerCh = resetTimer()
			}

		case tag := <-h.doneCh:
			delete(running, tag)

		case <-timerCh:
			h.fireDue(jobs, running, hp)
			timerCh = resetTimer()
		}
	}
}

func (h *Host) enqueue(jobs map[string]*Registration, hp *eventHeap, w Work) (bool, error) {
	if _, ok := jobs[w.Tag]; ok && w.Policy == KeepExisting {
		return false, nil
	}
	if w.Interval <= 0 && w.Cron == "" {
		return false, errors.New("scheduler: work needs an interval or a cron expression")
	}
	now := h.now()
	reg := Registration{
		Tag:          w.Tag,
		Interval:     w.Interval,
		Cron:         w.Cron,
		Constraints:  w.Constraints,
		NextRunAt:    now.Add(w.InitialDelay),
		RegisteredAt: now,
	}
	if err := h.store.SaveJob(h.ctx, reg); err != nil {
		return false, err
	}
	heapRemove(hp, w.Tag, nil)
	jobs[w.Tag] = &reg
	heapPush(hp, event{Tag: w.Tag, TriggerAt: reg.NextRunAt})
	return true, nil
}

func (h *Host) fireDue(jobs map[string]*Registration, running map[string]bool, hp *eventHeap) {
	now := h.now()
	for hp.Len() > 0 && !(*hp)[0].TriggerAt.After(now) {
		e := heapPop(hp)
		reg, ok := jobs[e.Tag]
		if !ok {
			continue
		}
		if !e.Deferred {
			// A scheduled firing supersedes a pending constraint re-check.
			heapRemove(hp, e.Tag, isDeferred)
			h.advance(jobs, hp, reg, now)
		}
		if running[e.Tag] {
			h.log.Warning("scheduler: %s is still running, skipping this firing", e.Tag)
			continue
		}
		running[e.Tag] = true
		h.wg.Add(1)
		go h.execute(e.Tag, reg.Constraints)
	}
}

// advance moves reg to its next trigger after now and persists it. One-shot
// registrations are dropped.
func (h *Host) advance(jobs map[string]*Registration, hp *eventHeap, reg *Registration, now time.Time) {
	next := nextRun(*reg, reg.NextRunAt, now)
	if next.IsZero() {
		delete(jobs, reg.Tag)
		if err := h.store.DeleteJob(h.ctx, reg.Tag); err != nil {
			h.log.Error("scheduler: %v", err)
		}
		return
	}
	reg.NextRunAt = next
	if err := h.store.SaveJob(h.ctx, *reg); err != nil {
		h.log.Error("scheduler: %v", err)
	}
	heapPush(hp, event{Tag: reg.Tag, TriggerAt: next})
}

func (h *Host) execute(tag string, c Constraints) {
	defer h.wg.Done()
	defer h.notify(h.doneCh, tag)

	if h.checker != nil {
		if err := h.checker.Check(h.ctx, c); err != nil {
			h.log.Info("scheduler: %s deferred by %s: %v", tag, h.deferInterval, err)
			if h.onDefer != nil {
				h.onDefer(tag, err)
			}
			select {
			case h.deferCh <- event{Tag: tag, TriggerAt: h.now().Add(h.deferInterval), Deferred: true}:
			case <-h.ctx.Done():
			}
			return
		}
	}
	h.run(h.ctx, tag)
}

func (h *Host) notify(ch chan<- string, tag string) {
	select {
	case ch <- tag:
	case <-h.ctx.Done():
	}
}

// nextRun returns the first trigger after now following prev. Whole-day
// intervals step in calendar days so the local time of day survives DST.
func nextRun(r Registration, prev, now time.Time) time.Time {
	if r.Cron != "" {
		next, err := gronx.NextTickAfter(r.Cron, now, false)
		if err != nil {
			return time.Time{}
		}
		return next
	}
	if r.Interval <= 0 {
		return time.Time{}
	}
	if r.Interval%Day == 0 {
		days := int(r.Interval / Day)
		next := prev.AddDate(0, 0, days)
		for !next.After(now) {
			next = next.AddDate(0, 0, days)
		}
		return next
	}
	next := prev.Add(r.Interval)
	if !next.After(now) {
		skipped := now.Sub(prev) / r.Interval
		next = prev.Add((skipped + 1) * r.Interval)
	}
	return next
}

func snapshot(jobs map[string]*Registration, running map[string]bool) []JobInfo {
	out := make([]JobInfo, 0, len(jobs))
	for tag, r := range jobs {
		out = append(out, JobInfo{Registration: *r, Running: running[tag]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}
