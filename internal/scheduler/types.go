package scheduler

import "time"

// event is one pending firing in the host heap. The heap is in-memory only;
// it is rebuilt from the persisted registrations on start.
type event struct {
	Tag       string
	TriggerAt time.Time
	// Deferred marks a re-check after unmet constraints. It does not advance
	// the job's schedule when it fires.
	Deferred bool
}

// Registration is the persisted state of a hosted job.
type Registration struct {
	Tag          string
	Interval     time.Duration
	Cron         string
	Constraints  Constraints
	NextRunAt    time.Time
	RegisteredAt time.Time
}

// JobInfo describes a hosted job for listings.
type JobInfo struct {
	Registration
	Running bool
}
