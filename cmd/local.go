package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/lexipath/lexisync/cmd/common"
	"github.com/lexipath/lexisync/internal/config"
	"github.com/lexipath/lexisync/internal/daemon"
	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/internal/remote"
	"github.com/lexipath/lexisync/pkg/logger"
)

var (
	profileFlags = []cli.Flag{
		cli.StringFlag{Name: "goal, g", Usage: "learning goal: language or industry"},
		cli.StringFlag{Name: "level, l", Usage: "beginner, intermediate or advanced"},
		cli.StringFlag{Name: "target, t", Usage: "language being learned"},
		cli.StringFlag{Name: "base, b", Usage: "language explanations are written in"},
		cli.StringFlag{Name: "industry, i", Usage: "industry sector for the industry goal"},
	}
	quizFlags = []cli.Flag{
		cli.StringFlag{Name: "content", Usage: "id of the quizzed content"},
		cli.StringFlag{Name: "type", Usage: "mcq, fill_blank or situation", Value: string(model.QuizMCQ)},
	}
	planFlags = []cli.Flag{
		cli.BoolFlag{Name: "generate, g", Usage: "asks the backend for this week's plan"},
	}
	translateFlags = []cli.Flag{
		cli.StringFlag{Name: "to", Usage: "target language"},
		cli.StringFlag{Name: "from", Usage: "source language", Value: "en"},
	}
)

var (
	errTokenRequired  = errors.New("an ID token is required")
	errInvalidProfile = errors.New("--goal must be language or industry and --level beginner, intermediate or advanced")
	errInvalidQuiz    = errors.New("--content, a valid --type and an answer are required")
	errTranslateArgs  = errors.New("--to and a text are required")
)

// openApp opens the engine without the scheduler and control endpoint.
var openApp = func(ctx context.Context, cfg *config.Config) (*daemon.App, error) {
	return daemon.Open(ctx, cfg, &daemon.Dependencies{Logger: logger.NewNopLogger()})
}

func withApp(ctx *cli.Context, cmd, action string, fn func(context.Context, *daemon.App) error) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, cmd, "load_config", err)
		return nil
	}
	bg := context.Background()
	app, err := openApp(bg, cfg)
	if err != nil {
		common.PrintRuntimeErr(ctx, cmd, "open", err)
		return nil
	}
	defer app.Close()
	if err := fn(bg, app); err != nil {
		common.PrintRuntimeErr(ctx, cmd, action, err)
	}
	return nil
}

// withOwner is withApp for commands that need a signed in owner.
func withOwner(ctx *cli.Context, cmd, action string, fn func(context.Context, *daemon.App, string) error) error {
	return withApp(ctx, cmd, action, func(c context.Context, app *daemon.App) error {
		owner, err := app.Session.Owner(c)
		if err != nil {
			return err
		}
		return fn(c, app, owner)
	})
}

func tokenSet(ctx *cli.Context) error {
	token := strings.TrimSpace(ctx.Args().First())
	if token == "" {
		return common.PrintErrWithCmdHelp(ctx, errTokenRequired)
	}
	return withApp(ctx, "token", "sign_in", func(_ context.Context, app *daemon.App) error {
		owner, err := app.Session.SignIn(token)
		if err != nil {
			return err
		}
		fmt.Fprintf(common.Out, "Signed in as %s.\n", owner)
		return nil
	})
}

func tokenClear(ctx *cli.Context) error {
	return withApp(ctx, "token", "sign_out", func(_ context.Context, app *daemon.App) error {
		if err := app.Session.SignOut(); err != nil {
			return err
		}
		fmt.Fprintln(common.Out, "Signed out.")
		return nil
	})
}

func profileShow(ctx *cli.Context) error {
	return withOwner(ctx, "profile", "show", func(c context.Context, app *daemon.App, owner string) error {
		p, err := app.Resolver.Profile(c, owner)
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintln(common.Out, "No cached profile. Use 'lexisync profile set' to create one.")
			return nil
		}
		fmt.Fprintf(common.Out, "Goal:     %s\n", p.GoalType)
		fmt.Fprintf(common.Out, "Level:    %s\n", p.Level)
		fmt.Fprintf(common.Out, "Target:   %s\n", deref(p.TargetLang))
		fmt.Fprintf(common.Out, "Base:     %s\n", deref(p.BaseLang))
		fmt.Fprintf(common.Out, "Industry: %s\n", deref(p.IndustrySector))
		return nil
	})
}

func profileSet(ctx *cli.Context) error {
	upd := model.ProfileUpdate{
		GoalType:       model.GoalType(ctx.String("goal")),
		Level:          model.Level(ctx.String("level")),
		TargetLang:     optString(ctx, "target"),
		BaseLang:       optString(ctx, "base"),
		IndustrySector: optString(ctx, "industry"),
	}
	if !upd.GoalType.Valid() || !upd.Level.Valid() {
		return common.PrintErrWithCmdHelp(ctx, errInvalidProfile)
	}
	return withOwner(ctx, "profile", "upsert", func(c context.Context, app *daemon.App, owner string) error {
		p, err := app.Resolver.UpsertProfile(c, owner, upd)
		if err != nil {
			return err
		}
		fmt.Fprintf(common.Out, "Profile saved (%s, %s).\n", p.GoalType, p.Level)
		return nil
	})
}

func quiz(ctx *cli.Context) error {
	sub := model.QuizSubmission{
		ContentID:  ctx.String("content"),
		QuizType:   model.QuizType(ctx.String("type")),
		UserAnswer: strings.Join(ctx.Args(), " "),
	}
	if sub.ContentID == "" || sub.UserAnswer == "" || !sub.QuizType.Valid() {
		return common.PrintErrWithCmdHelp(ctx, errInvalidQuiz)
	}
	return withOwner(ctx, "quiz", "submit", func(c context.Context, app *daemon.App, owner string) error {
		log, err := app.Resolver.SubmitQuiz(c, owner, sub)
		if err != nil {
			return err
		}
		if log.IsCorrect {
			fmt.Fprintln(common.Out, "Correct!")
			return nil
		}
		fmt.Fprintf(common.Out, "Not quite. The answer was: %s\n", log.CorrectAnswer)
		return nil
	})
}

func plan(ctx *cli.Context) error {
	return withOwner(ctx, "plan", "plan", func(c context.Context, app *daemon.App, owner string) error {
		var (
			p   *model.WeeklyPlan
			err error
		)
		if ctx.Bool("generate") {
			p, _, err = app.Resolver.GenerateWeeklyPlan(c, owner)
		} else {
			p, err = app.Resolver.LatestPlan(c, owner)
		}
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintln(common.Out, "No cached plan. Use --generate to ask for one.")
			return nil
		}
		fmt.Fprintf(common.Out, "Week of %s\n", p.WeekStart)
		for _, it := range p.Items {
			kind := "new"
			if it.IsReviewDay {
				kind = "review"
			}
			fmt.Fprintf(common.Out, "  %s  %-6s  %d item(s)\n", it.Date, kind, len(it.ContentIDs))
		}
		return nil
	})
}

func translate(ctx *cli.Context) error {
	req := remote.TranslateRequest{
		Text:       strings.Join(ctx.Args(), " "),
		TargetLang: ctx.String("to"),
		BaseLang:   ctx.String("from"),
	}
	if req.Text == "" || req.TargetLang == "" {
		return common.PrintErrWithCmdHelp(ctx, errTranslateArgs)
	}
	return withApp(ctx, "translate", "translate", func(c context.Context, app *daemon.App) error {
		out, err := app.Remote.Translate(c, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(common.Out, out)
		return nil
	})
}

func purge(ctx *cli.Context) error {
	return withOwner(ctx, "purge", "purge", func(c context.Context, app *daemon.App, owner string) error {
		if err := app.Resolver.Purge(c, owner); err != nil {
			return err
		}
		fmt.Fprintf(common.Out, "Removed cached data of %s.\n", owner)
		return nil
	})
}

func optString(ctx *cli.Context, name string) *string {
	v := ctx.String(name)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
