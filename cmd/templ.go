package cmd

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Global Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const DESCRIPTION = `
lexisync keeps the daily vocabulary of a language learner available offline.
The daemon prefetches today's content every morning, prepares the weekly
plan on Sundays and evicts stale records; the other commands talk to it
or to the local cache.
`

const TodayDescription = `Shows the content of a day (today by default).
The cached record is used when present, otherwise the backend is asked
and the answer is cached.

Example:
        lexisync today
        lexisync today --date 2024-01-02
`

const HistoryDescription = `Lists previously delivered content.
The first page is served from the cache when it holds enough records.

Example:
        lexisync history --limit 10 --offset 20
`

const RunDescription = `Runs a scheduled job immediately, outside its schedule.
Known jobs: daily_prefetch, weekly_planner, cache_eviction.

Example:
        lexisync run daily_prefetch
`

const TokenDescription = `Stores or forgets the ID token used to call the backend.
The token is kept in the system keyring, or in the data directory when no
keyring is available.

Example:
        lexisync token set eyJhbGciOi...
        lexisync token clear
`

const ProfileDescription = `Shows the cached learning profile or updates it on the backend.

Example:
        lexisync profile show
        lexisync profile set --goal language --target es --base en --level beginner
`
