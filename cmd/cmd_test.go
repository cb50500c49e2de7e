package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lexipath/lexisync/cmd/common"
	"github.com/lexipath/lexisync/internal/config"
	"github.com/lexipath/lexisync/internal/jobs"
	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/internal/scheduler"
	"github.com/lexipath/lexisync/internal/server"
)

type rpcCall struct {
	method string
	params json.RawMessage
}

// fakeRPC answers calls from canned results.
type fakeRPC struct {
	results map[string]any
	errs    map[string]error
	calls   []rpcCall
	closed  bool
}

func (f *fakeRPC) CallResult(_ context.Context, method string, params, result any) error {
	raw, _ := json.Marshal(params)
	f.calls = append(f.calls, rpcCall{method: method, params: raw})
	if err := f.errs[method]; err != nil {
		return err
	}
	data, err := json.Marshal(f.results[method])
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func (f *fakeRPC) Close() error {
	f.closed = true
	return nil
}

func stubConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old := loadConfigFile
	loadConfigFile = func(string) (*config.Config, error) {
		cfg := &config.Config{DataDir: dir}
		cfg.SetDefaults()
		return cfg, nil
	}
	t.Cleanup(func() { loadConfigFile = old })
}

func stubRPC(t *testing.T, f *fakeRPC) *[]*config.Config {
	t.Helper()
	var seen []*config.Config
	old := newRPCClient
	newRPCClient = func(cfg *config.Config) rpcClient {
		seen = append(seen, cfg)
		return f
	}
	t.Cleanup(func() { newRPCClient = old })
	return &seen
}

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := common.Out
	common.Out = &buf
	t.Cleanup(func() { common.Out = old })
	return &buf
}

func run(t *testing.T, args ...string) {
	t.Helper()
	if err := Execute(append([]string{"lexisync"}, args...), BuildArgs{Version: "1.0.0", BuildType: "test"}); err != nil {
		t.Fatalf("Execute(%v): %v", args, err)
	}
}

func TestToday(t *testing.T) {
	stubConfig(t)
	out := captureOut(t)
	f := &fakeRPC{results: map[string]any{
		"content.today": server.TodayResult{
			Record: &model.ContentRecord{
				Word:           "gato",
				Meaning:        "cat",
				Date:           model.MustParseDate("2024-01-02"),
				ExamplesTarget: []string{"El gato duerme."},
			},
			Source: "cache",
		},
	}}
	stubRPC(t, f)

	run(t, "today", "--date", "2024-01-02")

	if len(f.calls) != 1 || f.calls[0].method != "content.today" {
		t.Fatalf("calls = %+v", f.calls)
	}
	var p server.TodayParams
	_ = json.Unmarshal(f.calls[0].params, &p)
	if p.Date != "2024-01-02" {
		t.Errorf("date param = %q", p.Date)
	}
	if !f.closed {
		t.Error("client not closed")
	}
	for _, want := range []string{"gato (2024-01-02, cache)", "cat", "- El gato duerme."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q lacks %q", out.String(), want)
		}
	}
}

func TestTodayEmptyAndError(t *testing.T) {
	stubConfig(t)
	out := captureOut(t)
	f := &fakeRPC{results: map[string]any{"content.today": server.TodayResult{}}}
	stubRPC(t, f)

	run(t, "today")
	if !strings.Contains(out.String(), "No content") {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	f.errs = map[string]error{"content.today": errors.New("connection refused")}
	run(t, "today")
	if !strings.Contains(out.String(), "today[content.today]: connection refused") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestHistory(t *testing.T) {
	stubConfig(t)
	out := captureOut(t)
	f := &fakeRPC{results: map[string]any{
		"content.history": server.HistoryResult{
			Content: []model.ContentRecord{
				{Word: "perro", Meaning: "dog", Date: model.MustParseDate("2024-01-02")},
				{Word: "gato", Meaning: "cat", Date: model.MustParseDate("2024-01-01")},
			},
			Limit:  5,
			Offset: 10,
			Source: "remote",
		},
	}}
	stubRPC(t, f)

	run(t, "history", "--limit", "5", "--offset", "10")

	var p server.HistoryParams
	_ = json.Unmarshal(f.calls[0].params, &p)
	if p.Limit != 5 || p.Offset != 10 {
		t.Errorf("params = %+v", p)
	}
	for _, want := range []string{"perro", "gato", "2 records from remote (offset 10)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestSweep(t *testing.T) {
	stubConfig(t)
	out := captureOut(t)
	stubRPC(t, &fakeRPC{results: map[string]any{"cache.sweep": server.SweepResult{Evicted: 4}}})

	run(t, "sweep")
	if !strings.Contains(out.String(), "Evicted 4 cached records.") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunJob(t *testing.T) {
	stubConfig(t)
	out := captureOut(t)
	f := &fakeRPC{results: map[string]any{
		"job.run": jobs.Outcome{
			Tag:       scheduler.TagDailyPrefetch,
			Status:    jobs.StatusFailure,
			Attempts:  3,
			ErrorKind: "network",
			Error:     "exhausted",
			Data:      map[string]string{"prefetch_date": "2024-01-02"},
			Duration:  1500 * time.Millisecond,
		},
	}}
	stubRPC(t, f)

	run(t, "run", scheduler.TagDailyPrefetch)

	var p server.TagParam
	_ = json.Unmarshal(f.calls[0].params, &p)
	if p.Tag != scheduler.TagDailyPrefetch {
		t.Errorf("tag param = %q", p.Tag)
	}
	for _, want := range []string{"daily_prefetch: failure after 3 attempt(s)", "error (network): exhausted", "prefetch_date = 2024-01-02"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestRunJobRequiresTag(t *testing.T) {
	stubConfig(t)
	out := captureOut(t)
	f := &fakeRPC{}
	stubRPC(t, f)

	run(t, "run")
	if len(f.calls) != 0 {
		t.Fatalf("unexpected calls %+v", f.calls)
	}
	if !strings.Contains(out.String(), errTagRequired.Error()) {
		t.Fatalf("output = %q", out.String())
	}
}

func TestJobsListAndCancel(t *testing.T) {
	stubConfig(t)
	out := captureOut(t)
	next := time.Date(2024, 1, 7, 5, 0, 0, 0, time.UTC)
	f := &fakeRPC{results: map[string]any{
		"job.list": server.JobListResult{Jobs: []server.JobItem{
			{Tag: scheduler.TagCacheEviction, Interval: "24h0m0s", NextRunAt: next},
			{Tag: scheduler.TagWeeklyPlanner, Interval: "168h0m0s", NextRunAt: next, Running: true},
		}},
		"job.cancel": server.EmptyResult{},
	}}
	stubRPC(t, f)

	run(t, "jobs", "list")
	for _, want := range []string{"cache_eviction", "168h0m0s", "running"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	run(t, "jobs", "cancel", scheduler.TagWeeklyPlanner)
	if got := f.calls[len(f.calls)-1]; got.method != "job.cancel" || !strings.Contains(string(got.params), scheduler.TagWeeklyPlanner) {
		t.Fatalf("last call = %+v", got)
	}
	if !strings.Contains(out.String(), "Cancelled weekly_planner.") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestGlobalFlagsOverrideConfig(t *testing.T) {
	stubConfig(t)
	captureOut(t)
	seen := stubRPC(t, &fakeRPC{results: map[string]any{"cache.sweep": server.SweepResult{}}})

	run(t, "--rpc-addr", "127.0.0.1:9999", "--secret", "s3cret", "--api-url", "https://api.example.com/", "sweep")

	if len(*seen) != 1 {
		t.Fatalf("clients built: %d", len(*seen))
	}
	cfg := (*seen)[0]
	if cfg.RPCAddr != "127.0.0.1:9999" || cfg.RPCSecret != "s3cret" || cfg.APIBaseURL != "https://api.example.com/" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestInvalidLogLevelFlag(t *testing.T) {
	stubConfig(t)
	out := captureOut(t)
	f := &fakeRPC{}
	stubRPC(t, f)

	run(t, "--log-level", "loud", "sweep")
	if len(f.calls) != 0 {
		t.Fatal("no call expected with an invalid config")
	}
	if !strings.Contains(out.String(), "sweep[load_config]") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestVersion(t *testing.T) {
	out := captureOut(t)
	run(t, "version")
	if !strings.HasPrefix(out.String(), "lexisync 1.0.0-test") {
		t.Fatalf("output = %q", out.String())
	}
}
