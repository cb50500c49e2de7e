package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/lexipath/lexisync/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "path of the YAML config file (default: <data dir>/config.yml)",
		EnvVar: "LEXISYNC_CONFIG",
	},
	cli.StringFlag{
		Name:  "data-dir",
		Usage: "directory holding the database and the token fallback file",
	},
	cli.StringFlag{
		Name:  "api-url",
		Usage: "base URL of the backend API",
	},
	cli.StringFlag{
		Name:  "rpc-addr",
		Usage: "address of the daemon control endpoint",
	},
	cli.StringFlag{
		Name:  "secret",
		Usage: "bearer secret of the daemon control endpoint",
	},
	cli.StringFlag{
		Name:  "log-level",
		Usage: "daemon log level (debug, info, warn, error)",
	},
}

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "lexisync",
		HelpName:              "lexisync",
		Usage:                 "Offline-first sync engine for daily vocabulary.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "lexisync [global options] <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Flags:                 globalFlags,
		Commands: []cli.Command{
			{
				Name:   "daemon",
				Usage:  "runs the scheduler and the control endpoint",
				Action: runDaemon,
			},
			{
				Name:   "stop",
				Usage:  "stops a running daemon",
				Action: stopDaemon,
			},
			{
				Name:               "today",
				Aliases:            []string{"t"},
				Usage:              "shows the content of the day",
				Description:        TodayDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             today,
				Flags:              todayFlags,
			},
			{
				Name:               "history",
				Usage:              "lists delivered content",
				Description:        HistoryDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             history,
				Flags:              historyFlags,
			},
			{
				Name:               "profile",
				Usage:              "shows or updates the learning profile",
				Description:        ProfileDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Subcommands: []cli.Command{
					{
						Name:   "show",
						Usage:  "prints the cached profile",
						Action: profileShow,
					},
					{
						Name:         "set",
						Usage:        "updates the profile on the backend",
						Action:       profileSet,
						Flags:        profileFlags,
						OnUsageError: common.UsageErrorCallback,
					},
				},
			},
			{
				Name:         "quiz",
				Usage:        "submits a quiz answer",
				UsageText:    "quiz --content <id> --type <mcq|fill_blank|situation> <answer>",
				Action:       quiz,
				Flags:        quizFlags,
				OnUsageError: common.UsageErrorCallback,
			},
			{
				Name:   "plan",
				Usage:  "shows the cached weekly plan, --generate asks the backend for a new one",
				Action: plan,
				Flags:  planFlags,
			},
			{
				Name:         "translate",
				Usage:        "translates a text with the backend",
				UsageText:    "translate --to <lang> [--from <lang>] <text>",
				Action:       translate,
				Flags:        translateFlags,
				OnUsageError: common.UsageErrorCallback,
			},
			{
				Name:   "sweep",
				Usage:  "evicts cached content older than the retention window",
				Action: sweep,
			},
			{
				Name:               "run",
				Usage:              "runs a scheduled job now",
				UsageText:          "run <tag>",
				Description:        RunDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             runJob,
			},
			{
				Name:  "jobs",
				Usage: "inspects the scheduled jobs",
				Subcommands: []cli.Command{
					{
						Name:   "list",
						Usage:  "lists the registered jobs",
						Action: jobsList,
					},
					{
						Name:      "cancel",
						Usage:     "cancels a registered job",
						UsageText: "jobs cancel <tag>",
						Action:    jobsCancel,
					},
				},
			},
			{
				Name:               "token",
				Usage:              "stores or forgets the ID token",
				Description:        TokenDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Subcommands: []cli.Command{
					{
						Name:      "set",
						UsageText: "token set <id token>",
						Action:    tokenSet,
					},
					{
						Name:   "clear",
						Action: tokenClear,
					},
				},
			},
			{
				Name:   "purge",
				Usage:  "removes everything cached for the signed in owner",
				Action: purge,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints the installed version of lexisync",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
