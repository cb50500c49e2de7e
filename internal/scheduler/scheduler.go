package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/lexipath/lexisync/pkg/logger"
)

// Work is what the Scheduler hands to a Facility.
type Work struct {
	Tag          string
	InitialDelay time.Duration
	Interval     time.Duration
	Cron         string
	Constraints  Constraints
	Policy       Policy
}

// Facility is a durable, constraint-aware executor of periodic work.
type Facility interface {
	// EnqueueUniquePeriodic registers w under its tag. It reports false when
	// the tag was already registered and w.Policy is KeepExisting.
	EnqueueUniquePeriodic(ctx context.Context, w Work) (bool, error)
	// CancelByTag removes future firings of tag. Running executions finish.
	CancelByTag(ctx context.Context, tag string) error
}

// Scheduler registers JobSpecs with a Facility.
type Scheduler struct {
	facility Facility
	now      func() time.Time
	log      logger.Logger
}

type Option func(*Scheduler)

// WithClock sets the clock used for delay computation.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger used for registration messages.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New returns a Scheduler registering work with f.
func New(f Facility, opts ...Option) *Scheduler {
	s := &Scheduler{facility: f, now: time.Now, log: logger.NewNopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register enqueues spec. It returns false when the tag was already
// registered and the spec keeps existing schedules.
func (s *Scheduler) Register(ctx context.Context, spec JobSpec) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}
	delay, err := spec.InitialDelay(s.now())
	if err != nil {
		return false, err
	}
	w := Work{
		Tag:          spec.Tag,
		InitialDelay: delay,
		Interval:     spec.Interval,
		Cron:         spec.Cron,
		Constraints:  spec.Constraints,
		Policy:       spec.Policy,
	}
	added, err := s.facility.EnqueueUniquePeriodic(ctx, w)
	if err != nil {
		return false, fmt.Errorf("register %s: %w", spec.Tag, err)
	}
	if added {
		s.log.Info("scheduler: registered %s, first run in %s", spec.Tag, delay.Round(time.Second))
	}
	return added, nil
}

// RegisterDefaults registers DefaultSpecs, keeping any existing schedules.
func (s *Scheduler) RegisterDefaults(ctx context.Context) error {
	for _, spec := range DefaultSpecs() {
		if _, err := s.Register(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// Cancel removes future firings of every tag.
func (s *Scheduler) Cancel(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		if err := s.facility.CancelByTag(ctx, tag); err != nil {
			return fmt.Errorf("cancel %s: %w", tag, err)
		}
		s.log.Info("scheduler: cancelled %s", tag)
	}
	return nil
}
