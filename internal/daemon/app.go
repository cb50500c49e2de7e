package daemon

import (
	"context"
	"database/sql"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/lexipath/lexisync/internal/auth"
	"github.com/lexipath/lexisync/internal/cache"
	"github.com/lexipath/lexisync/internal/config"
	"github.com/lexipath/lexisync/internal/constraint"
	"github.com/lexipath/lexisync/internal/db"
	"github.com/lexipath/lexisync/internal/evict"
	"github.com/lexipath/lexisync/internal/jobs"
	"github.com/lexipath/lexisync/internal/metrics"
	"github.com/lexipath/lexisync/internal/remote"
	"github.com/lexipath/lexisync/internal/scheduler"
	"github.com/lexipath/lexisync/internal/server"
	"github.com/lexipath/lexisync/internal/syncer"
	"github.com/lexipath/lexisync/pkg/credman/encryption"
	"github.com/lexipath/lexisync/pkg/credman/keyring"
	"github.com/lexipath/lexisync/pkg/logger"
)

// Keyring coordinates of the stored ID token.
const (
	KeyringService = "lexisync"
	KeyringUser    = "id_token"
	tokenFileName  = "id_token"
)

// Dependencies are the replaceable edges of the engine. Nil fields get
// production defaults.
type Dependencies struct {
	// ListenerFactory creates the RPC listener. Defaults to net.Listen.
	ListenerFactory ListenerFactory
	Logger          logger.Logger
	// Tokens stores the ID token. Defaults to the OS keyring with a file
	// fallback in the data directory.
	Tokens     keyring.Store
	Fs         afero.Fs
	HTTPClient *http.Client
	Checker    scheduler.ConstraintChecker
	Now        func() time.Time
}

func (d *Dependencies) withDefaults(cfg *config.Config) *Dependencies {
	out := Dependencies{}
	if d != nil {
		out = *d
	}
	if out.Logger == nil {
		out.Logger = NewLogger(cfg)
	}
	if out.Fs == nil {
		out.Fs = afero.NewOsFs()
	}
	if out.Tokens == nil {
		out.Tokens = TokenStore(cfg, out.Fs, out.Logger)
	}
	if out.Checker == nil {
		out.Checker = &constraint.Checker{
			Network: constraint.DialProbe{Addr: cfg.ProbeAddr},
			Battery: constraint.NewSysfsBattery(out.Fs),
		}
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

// TokenStore is the OS keyring with a file fallback in the data directory.
// The file is sealed when cfg carries a token key.
func TokenStore(cfg *config.Config, fs afero.Fs, log logger.Logger) keyring.Store {
	var file keyring.Store = keyring.NewFileStore(fs, cfg.DataDir, tokenFileName)
	if key, err := encryption.ParseKey(cfg.TokenKey); err == nil {
		file = keyring.NewSealed(file, key)
	}
	return keyring.NewFallback(keyring.NewKeyring(KeyringService, KeyringUser), file, log)
}

// NewLogger builds the zap logger described by cfg, falling back to stderr.
// With a log file, the file gets every entry as JSON and stderr is kept as a
// warnings-only mirror.
func NewLogger(cfg *config.Config) logger.Logger {
	z, err := logger.NewZapLogger(logger.ZapConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		std := logger.NewStandardLogger(stdlog.New(os.Stderr, "lexisync: ", stdlog.LstdFlags))
		std.Warning("falling back to standard logger: %v", err)
		return std
	}
	if cfg.Log.File == "" {
		return z
	}
	file, err := logger.NewZapLogger(logger.ZapConfig{
		Level:       cfg.Log.Level,
		Format:      "json",
		OutputPaths: []string{cfg.Log.File},
	})
	if err != nil {
		z.Warning("log file %s unavailable, logging to stderr only: %v", cfg.Log.File, err)
		return z
	}
	return logger.NewMultiLogger(file).AddAtLeast(z, logger.LevelWarning)
}

// App holds the engine's components around one database. The CLI uses it
// directly for one-shot commands; the Runner adds the host and RPC server.
type App struct {
	DB        *sql.DB
	Cache     *cache.Store
	Session   *auth.Session
	Remote    *remote.Client
	Resolver  *syncer.Resolver
	Evictor   *evict.Evictor
	Sweeper   *CountingSweeper
	Metrics   *metrics.Recorder
	Jobs      *jobs.Dispatcher
	Host      *scheduler.Host
	Scheduler *scheduler.Scheduler
	Notifier  *server.Notifier
	Log       logger.Logger
	Now       func() time.Time

	ownsLog bool
}

// Open builds an App. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, deps *Dependencies) (*App, error) {
	d := deps.withDefaults(cfg)
	log := d.Logger

	conn, err := db.Open(ctx, filepath.Join(cfg.DataDir, db.FileName))
	if err != nil {
		return nil, err
	}
	store := cache.New(conn, cache.WithClock(d.Now))
	session := auth.NewSession(d.Tokens)
	client, err := remote.New(remote.Config{
		BaseURL:        cfg.APIBaseURL,
		Timeout:        cfg.HTTPTimeout,
		Proxy:          cfg.Proxy,
		AllowAnonymous: cfg.AllowAnonymous,
		HTTPClient:     d.HTTPClient,
	}, session)
	if err != nil {
		conn.Close()
		return nil, err
	}

	rec := metrics.New()
	resolver := syncer.New(client, store, syncer.WithObserver(rec), syncer.WithLogger(log))
	evictor := evict.New(store, evict.DefaultRetention)
	sweeper := &CountingSweeper{Evictor: evictor, Metrics: rec}
	notifier := server.NewNotifier(log)

	dispatcher := jobs.NewDispatcher(jobs.WithLogger(log), jobs.WithMetrics(rec), jobs.WithClock(d.Now))
	dispatcher.Register(scheduler.TagDailyPrefetch, jobs.DailyPrefetch(session, resolver, d.Now, notifier.ContentPrefetched))
	dispatcher.Register(scheduler.TagWeeklyPlanner, jobs.WeeklyPlanner(session, resolver, d.Now))
	dispatcher.Register(scheduler.TagCacheEviction, jobs.CacheEviction(sweeper, d.Now))
	dispatcher.OnOutcome(notifier.JobOutcome)

	host := scheduler.NewHost(scheduler.NewSQLStore(conn), dispatcher.Fire,
		scheduler.WithChecker(d.Checker),
		scheduler.WithHostLogger(log),
		scheduler.WithDeferHook(func(tag string, _ error) { rec.Deferred(tag) }),
	)

	return &App{
		DB:        conn,
		Cache:     store,
		Session:   session,
		Remote:    client,
		Resolver:  resolver,
		Evictor:   evictor,
		Sweeper:   sweeper,
		Metrics:   rec,
		Jobs:      dispatcher,
		Host:      host,
		Scheduler: scheduler.New(host, scheduler.WithClock(d.Now), scheduler.WithLogger(log)),
		Notifier:  notifier,
		Log:       log,
		Now:       d.Now,
		ownsLog:   deps == nil || deps.Logger == nil,
	}, nil
}

func (a *App) Close() error {
	var errs []error
	if err := a.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.ownsLog {
		if err := a.Log.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CountingSweeper records every sweep's evicted rows in metrics.
type CountingSweeper struct {
	Evictor *evict.Evictor
	Metrics *metrics.Recorder
}

func (c *CountingSweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := c.Evictor.Sweep(ctx, now)
	if err == nil {
		c.Metrics.Evicted(n)
	}
	return n, err
}
