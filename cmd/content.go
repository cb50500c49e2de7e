package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/lexipath/lexisync/cmd/common"
	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/internal/server"
)

var (
	todayFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "date, d",
			Usage: "day to show as YYYY-MM-DD (default: today)",
		},
	}
	historyFlags = []cli.Flag{
		cli.IntFlag{
			Name:  "limit, l",
			Usage: "records per page",
			Value: 20,
		},
		cli.IntFlag{
			Name:  "offset, o",
			Usage: "records to skip",
		},
	}
)

func today(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	var res server.TodayResult
	if !callDaemon(ctx, "today", "content.today", &server.TodayParams{Date: ctx.String("date")}, &res) {
		return nil
	}
	if res.Record == nil {
		fmt.Fprintln(common.Out, "No content for this day.")
		return nil
	}
	printRecord(res.Record, string(res.Source))
	return nil
}

func printRecord(rec *model.ContentRecord, source string) {
	fmt.Fprintf(common.Out, "%s (%s, %s)\n", rec.Word, rec.Date, source)
	fmt.Fprintf(common.Out, "  %s\n", rec.Meaning)
	for _, ex := range rec.ExamplesTarget {
		fmt.Fprintf(common.Out, "  - %s\n", ex)
	}
	for _, ex := range rec.ExamplesBase {
		fmt.Fprintf(common.Out, "  ~ %s\n", ex)
	}
}

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	params := &server.HistoryParams{Limit: ctx.Int("limit"), Offset: ctx.Int("offset")}
	var res server.HistoryResult
	if !callDaemon(ctx, "history", "content.history", params, &res) {
		return nil
	}
	if len(res.Content) == 0 {
		fmt.Fprintln(common.Out, "No content found.")
		return nil
	}
	txt := fmt.Sprintf("|%s|%s|%s|\n", common.Beaut("Date", 12), common.Beaut("Word", 20), common.Beaut("Meaning", 40))
	txt += fmt.Sprintf("|%s|%s|%s|\n", strings.Repeat("-", 12), strings.Repeat("-", 20), strings.Repeat("-", 40))
	for _, rec := range res.Content {
		txt += fmt.Sprintf("| %-10s | %-18s | %-38s |\n", rec.Date, clip(rec.Word, 18), clip(rec.Meaning, 38))
	}
	fmt.Fprint(common.Out, txt)
	fmt.Fprintf(common.Out, "\n%d records from %s (offset %d)\n", len(res.Content), res.Source, res.Offset)
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-2]) + ".."
}

func sweep(ctx *cli.Context) error {
	var res server.SweepResult
	if !callDaemon(ctx, "sweep", "cache.sweep", nil, &res) {
		return nil
	}
	fmt.Fprintf(common.Out, "Evicted %d cached records.\n", res.Evicted)
	return nil
}
