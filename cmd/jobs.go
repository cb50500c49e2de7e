package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/lexipath/lexisync/cmd/common"
	"github.com/lexipath/lexisync/internal/jobs"
	"github.com/lexipath/lexisync/internal/server"
)

var errTagRequired = errors.New("job tag is required")

func runJob(ctx *cli.Context) error {
	tag := ctx.Args().First()
	if tag == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if tag == "" {
		return common.PrintErrWithCmdHelp(ctx, errTagRequired)
	}
	var out jobs.Outcome
	if !callDaemon(ctx, "run", "job.run", &server.TagParam{Tag: tag}, &out) {
		return nil
	}
	fmt.Fprintf(common.Out, "%s: %s after %d attempt(s) in %s\n", out.Tag, out.Status, out.Attempts, out.Duration.Round(time.Millisecond))
	if out.Error != "" {
		fmt.Fprintf(common.Out, "  error (%s): %s\n", out.ErrorKind, out.Error)
	}
	for _, k := range sortedKeys(out.Data) {
		fmt.Fprintf(common.Out, "  %s = %s\n", k, out.Data[k])
	}
	return nil
}

func jobsList(ctx *cli.Context) error {
	var res server.JobListResult
	if !callDaemon(ctx, "jobs", "job.list", nil, &res) {
		return nil
	}
	if len(res.Jobs) == 0 {
		fmt.Fprintln(common.Out, "No jobs registered.")
		return nil
	}
	txt := fmt.Sprintf("|%s|%s|%s|%s|\n", common.Beaut("Tag", 18), common.Beaut("Schedule", 16), common.Beaut("Next run", 27), common.Beaut("State", 9))
	txt += fmt.Sprintf("|%s|%s|%s|%s|\n", strings.Repeat("-", 18), strings.Repeat("-", 16), strings.Repeat("-", 27), strings.Repeat("-", 9))
	for _, j := range res.Jobs {
		schedule := j.Interval
		if j.Cron != "" {
			schedule = j.Cron
		}
		state := "idle"
		if j.Running {
			state = "running"
		}
		txt += fmt.Sprintf("| %-16s | %-14s | %-25s | %-7s |\n", j.Tag, schedule, j.NextRunAt.Local().Format(time.RFC3339), state)
	}
	fmt.Fprint(common.Out, txt)
	return nil
}

func jobsCancel(ctx *cli.Context) error {
	tag := ctx.Args().First()
	if tag == "" {
		return common.PrintErrWithCmdHelp(ctx, errTagRequired)
	}
	var res server.EmptyResult
	if !callDaemon(ctx, "jobs", "job.cancel", &server.TagParam{Tag: tag}, &res) {
		return nil
	}
	fmt.Fprintf(common.Out, "Cancelled %s.\n", tag)
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
