// Package jobs runs the recurring sync jobs and reports their outcomes.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/pkg/logger"
)

// Status is the result of one job execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	// StatusSkipped means another execution of the same tag was in progress.
	StatusSkipped Status = "skipped"
)

var ErrUnknownJob = errors.New("jobs: unknown job")

// Outcome describes one execution. Data carries small job-specific values
// such as the prefetched word or the evicted row count.
type Outcome struct {
	Tag       string            `json:"tag"`
	RunID     uuid.UUID         `json:"run_id"`
	Status    Status            `json:"status"`
	Attempts  int               `json:"attempts"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Error     string            `json:"error,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
}

// JobFunc performs one execution. It reports how many remote attempts it
// made; data is kept on failure too.
type JobFunc func(ctx context.Context) (data map[string]string, attempts int, err error)

// Metrics receives one sample per execution.
type Metrics interface {
	JobRun(tag, status string, d time.Duration)
}

// Dispatcher maps tags to jobs. A tag never runs twice concurrently, whether
// fired by the scheduler host or triggered by hand.
type Dispatcher struct {
	mu      sync.Mutex
	jobs    map[string]JobFunc
	running map[string]bool
	hooks   []func(Outcome)

	log     logger.Logger
	metrics Metrics
	now     func() time.Time
}

type Option func(*Dispatcher)

// WithLogger sets the logger receiving one entry per execution.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics records every execution in m.
func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher returns a Dispatcher with no jobs.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		jobs:    make(map[string]JobFunc),
		running: make(map[string]bool),
		log:     logger.NewNopLogger(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Register binds tag to fn, replacing any earlier binding.
func (d *Dispatcher) Register(tag string, fn JobFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs[tag] = fn
}

// OnOutcome adds a hook called after every execution, skipped ones included.
func (d *Dispatcher) OnOutcome(fn func(Outcome)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// Tags lists the registered tags in order.
func (d *Dispatcher) Tags() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	tags := make([]string, 0, len(d.jobs))
	for tag := range d.jobs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Fire runs tag and discards the outcome. It has the scheduler.Runner shape.
func (d *Dispatcher) Fire(ctx context.Context, tag string) {
	if _, err := d.Run(ctx, tag); err != nil {
		d.log.Error("jobs: %v", err)
	}
}

// Run executes tag now. Job failures are reported in the Outcome; the error
// is only set for unknown tags.
func (d *Dispatcher) Run(ctx context.Context, tag string) (Outcome, error) {
	d.mu.Lock()
	fn, ok := d.jobs[tag]
	if !ok {
		d.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownJob, tag)
	}
	busy := d.running[tag]
	if !busy {
		d.running[tag] = true
	}
	hooks := append([]func(Outcome){}, d.hooks...)
	d.mu.Unlock()

	out := Outcome{Tag: tag, RunID: uuid.New(), StartedAt: d.now()}
	if busy {
		out.Status = StatusSkipped
		d.log.Warning("job %s: already running, skipped", tag)
	} else {
		d.execute(ctx, fn, &out)
		d.mu.Lock()
		delete(d.running, tag)
		d.mu.Unlock()
	}

	if d.metrics != nil {
		d.metrics.JobRun(tag, string(out.Status), out.Duration)
	}
	for _, h := range hooks {
		h(out)
	}
	return out, nil
}

func (d *Dispatcher) execute(ctx context.Context, fn JobFunc, out *Outcome) {
	data, attempts, err := fn(ctx)
	out.Duration = d.now().Sub(out.StartedAt)
	out.Data = data
	out.Attempts = attempts
	log := logger.With(d.log, "tag", out.Tag, "run_id", out.RunID.String(), "attempts", attempts)
	if err == nil {
		out.Status = StatusSuccess
		logger.With(log, "duration", out.Duration.String()).Info("job %s: success", out.Tag)
		return
	}
	out.Status = StatusFailure
	out.ErrorKind = model.KindOf(err).String()
	out.Error = err.Error()
	logger.With(log, "kind", out.ErrorKind).Error("job %s: failure: %v", out.Tag, err)
}
