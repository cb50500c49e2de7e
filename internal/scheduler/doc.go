// Package scheduler computes when recurring jobs fire and hosts them.
//
// Scheduler turns a JobSpec (target time of day, optional weekday, repeat
// interval, constraints) into an initial delay and hands it to a Facility.
// Host is the in-process Facility: a single goroutine owning a min-heap of
// trigger times, sleeping at most 60 seconds at a time so NTP steps, DST
// transitions and system suspend never make it oversleep. Registrations are
// persisted so a restarted daemon keeps its schedule and fires what it missed.
package scheduler
