package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeFacility mimics unique periodic work: KeepExisting never replaces.
type fakeFacility struct {
	mu        sync.Mutex
	work      map[string]Work
	cancelled []string
	err       error
}

func newFakeFacility() *fakeFacility {
	return &fakeFacility{work: make(map[string]Work)}
}

func (f *fakeFacility) EnqueueUniquePeriodic(_ context.Context, w Work) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.work[w.Tag]; ok && w.Policy == KeepExisting {
		return false, nil
	}
	f.work[w.Tag] = w
	return true, nil
}

func (f *fakeFacility) CancelByTag(_ context.Context, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.work, tag)
	f.cancelled = append(f.cancelled, tag)
	return nil
}

func TestRegisterDefaults(t *testing.T) {
	// Saturday 2024-03-16 06:00.
	now := time.Date(2024, 3, 16, 6, 0, 0, 0, time.UTC)
	f := newFakeFacility()
	s := New(f, WithClock(func() time.Time { return now }))

	if err := s.RegisterDefaults(context.Background()); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}
	want := map[string]time.Duration{
		TagDailyPrefetch: time.Hour,
		TagWeeklyPlanner: 23 * time.Hour,
		TagCacheEviction: 21 * time.Hour,
	}
	for tag, delay := range want {
		w, ok := f.work[tag]
		if !ok {
			t.Fatalf("%s not registered", tag)
		}
		if w.InitialDelay != delay {
			t.Errorf("%s initial delay = %s, want %s", tag, w.InitialDelay, delay)
		}
	}
	if f.work[TagWeeklyPlanner].Interval != Week {
		t.Errorf("weekly interval = %s", f.work[TagWeeklyPlanner].Interval)
	}
	if f.work[TagCacheEviction].Cron != "0 3 * * *" {
		t.Errorf("eviction cron = %q", f.work[TagCacheEviction].Cron)
	}
}

func TestDefaultEvictionFollowsCron(t *testing.T) {
	// Saturday 2024-03-16 06:00.
	now := time.Date(2024, 3, 16, 6, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHost(NewMemStore(), func(context.Context, string) {})
	h.now = func() time.Time { return now }
	if err := h.Start(ctx); err != nil {
		t.Fatal(err)
	}
	s := New(h, WithClock(func() time.Time { return now }))
	if err := s.RegisterDefaults(ctx); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}

	jobs, err := h.Jobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var evict *JobInfo
	for i := range jobs {
		if jobs[i].Tag == TagCacheEviction {
			evict = &jobs[i]
		}
	}
	if evict == nil {
		t.Fatalf("eviction not registered: %+v", jobs)
	}
	first := time.Date(2024, 3, 17, 3, 0, 0, 0, time.UTC)
	if evict.Cron != "0 3 * * *" || !evict.NextRunAt.Equal(first) {
		t.Fatalf("eviction registration = %+v", evict.Registration)
	}
	// Late by two days, the next trigger is still the coming 03:00.
	late := time.Date(2024, 3, 19, 9, 0, 0, 0, time.UTC)
	if got := nextRun(evict.Registration, first, late); !got.Equal(time.Date(2024, 3, 20, 3, 0, 0, 0, time.UTC)) {
		t.Errorf("nextRun = %s", got)
	}
}

func TestRegisterKeepsExistingSchedule(t *testing.T) {
	now := time.Date(2024, 3, 16, 6, 0, 0, 0, time.UTC)
	f := newFakeFacility()
	s := New(f, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	spec := DefaultSpecs()[0]
	if added, err := s.Register(ctx, spec); err != nil || !added {
		t.Fatalf("first Register = %v, %v", added, err)
	}
	now = now.Add(30 * time.Minute)
	if added, err := s.Register(ctx, spec); err != nil || added {
		t.Fatalf("second Register = %v, %v; want false", added, err)
	}
	if got := f.work[spec.Tag].InitialDelay; got != time.Hour {
		t.Errorf("existing schedule was replaced, delay = %s", got)
	}

	spec.Policy = Replace
	if added, err := s.Register(ctx, spec); err != nil || !added {
		t.Fatalf("Replace Register = %v, %v", added, err)
	}
	if got := f.work[spec.Tag].InitialDelay; got != 30*time.Minute {
		t.Errorf("replaced delay = %s, want 30m", got)
	}
}

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	f := newFakeFacility()
	s := New(f)
	if _, err := s.Register(context.Background(), JobSpec{Tag: "x"}); err == nil {
		t.Fatal("expected validation error")
	}
	if len(f.work) != 0 {
		t.Fatal("invalid spec reached the facility")
	}
}

func TestRegisterWrapsFacilityError(t *testing.T) {
	f := newFakeFacility()
	f.err = errors.New("disk full")
	s := New(f)
	_, err := s.Register(context.Background(), DefaultSpecs()[0])
	if !errors.Is(err, f.err) {
		t.Fatalf("expected facility error, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFakeFacility()
	s := New(f)
	ctx := context.Background()
	if err := s.RegisterDefaults(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Cancel(ctx, TagDailyPrefetch, TagCacheEviction); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(f.work) != 1 {
		t.Fatalf("remaining work = %v", f.work)
	}
	if _, ok := f.work[TagWeeklyPlanner]; !ok {
		t.Fatal("weekly planner should remain")
	}
}
