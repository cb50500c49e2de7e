// Package metrics exposes prometheus counters for the sync engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexipath/lexisync/internal/model"
)

const namespace = "lexisync"

// Recorder owns a private registry. A nil *Recorder records nothing, so
// components can take one unconditionally.
type Recorder struct {
	reg *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	remoteAttempts *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	evicted        prometheus.Counter
	deferrals      *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		reg: reg,
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by operation and result.",
		}, []string{"op", "hit"}),
		remoteAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "attempts_total",
			Help:      "Remote call attempts by operation and outcome kind.",
		}, []string{"op", "kind"}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Job executions by tag and status.",
		}, []string{"tag", "status"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"tag"}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evicted_total",
			Help:      "Content records removed by retention sweeps.",
		}),
		deferrals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "deferrals_total",
			Help:      "Firings postponed because a constraint was not met.",
		}, []string{"tag"}),
	}
}

func (r *Recorder) CacheLookup(op string, hit bool) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(op, strconv.FormatBool(hit)).Inc()
}

// RemoteAttempt counts one attempt. A nil err is recorded as kind "ok".
func (r *Recorder) RemoteAttempt(op string, err error) {
	if r == nil {
		return
	}
	kind := "ok"
	if err != nil {
		kind = model.KindOf(err).String()
	}
	r.remoteAttempts.WithLabelValues(op, kind).Inc()
}

func (r *Recorder) JobRun(tag, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.jobRuns.WithLabelValues(tag, status).Inc()
	r.jobDuration.WithLabelValues(tag).Observe(d.Seconds())
}

func (r *Recorder) Evicted(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.evicted.Add(float64(n))
}

func (r *Recorder) Deferred(tag string) {
	if r == nil {
		return
	}
	r.deferrals.WithLabelValues(tag).Inc()
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
