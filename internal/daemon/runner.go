// Package daemon assembles the sync engine and runs it until stopped: the
// scheduler host fires the recurring jobs and the control plane serves
// JSON-RPC and metrics.
package daemon

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexipath/lexisync/internal/config"
	"github.com/lexipath/lexisync/internal/server"
)

var (
	// ErrAlreadyRunning is returned when Start is called on a running daemon.
	ErrAlreadyRunning = errors.New("daemon is already running")
	// ErrNotRunning is returned when Shutdown is called on a stopped daemon.
	ErrNotRunning = errors.New("daemon is not running")
	// ErrShutdownTimeout is returned when running jobs outlive ShutdownTimeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

const DefaultShutdownTimeout = 30 * time.Second

type ListenerFactory func(network, address string) (net.Listener, error)

var defaultListener ListenerFactory = net.Listen

// Options are the runner's own settings.
type Options struct {
	Version string
	Commit  string
	// ShutdownTimeout bounds the wait for the RPC server and running jobs.
	ShutdownTimeout time.Duration
}

// Runner manages the daemon lifecycle.
type Runner struct {
	cfg  *config.Config
	opts Options
	deps *Dependencies

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	addr    net.Addr

	ready     chan struct{}
	readyOnce sync.Once
}

func New(cfg *config.Config, opts *Options, deps *Dependencies) *Runner {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Runner{cfg: cfg, opts: o, deps: deps, ready: make(chan struct{})}
}

// Ready is closed once the daemon accepts RPC connections.
func (r *Runner) Ready() <-chan struct{} {
	return r.ready
}

// Addr is the RPC listen address, nil before Ready.
func (r *Runner) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start runs the daemon until ctx is cancelled or Shutdown is called. A
// graceful stop returns nil.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()
	defer func() {
		cancel()
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	app, err := Open(ctx, r.cfg, r.deps)
	if err != nil {
		return err
	}
	defer app.Close()
	log := app.Log

	listen := defaultListener
	if r.deps != nil && r.deps.ListenerFactory != nil {
		listen = r.deps.ListenerFactory
	}
	ln, err := listen("tcp", r.cfg.RPCAddr)
	if err != nil {
		return err
	}

	if err := app.Host.Start(ctx); err != nil {
		ln.Close()
		return err
	}
	if err := app.Scheduler.RegisterDefaults(ctx); err != nil {
		log.Error("daemon: registering default jobs: %v", err)
	}

	srv := server.New(server.Config{
		Secret:  r.cfg.RPCSecret,
		Version: r.opts.Version,
		Commit:  r.opts.Commit,
	}, server.Dependencies{
		Jobs:     app.Jobs,
		Schedule: app.Host,
		Content:  app.Resolver,
		Owners:   app.Session,
		Sweeper:  app.Sweeper,
		Metrics:  app.Metrics.Handler(),
		Notifier: app.Notifier,
		Logger:   log,
		Now:      app.Now,
	})
	if r.cfg.RPCSecret == "" {
		log.Warning("daemon: rpc_secret is empty, every RPC request will be rejected")
	}

	r.mu.Lock()
	r.addr = ln.Addr()
	r.mu.Unlock()
	r.readyOnce.Do(func() { close(r.ready) })
	log.Info("daemon: started, rpc on %s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ln) })
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), r.opts.ShutdownTimeout)
		defer scancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()

	cancel()
	<-app.Host.Done()
	if !r.waitJobs(app) {
		log.Error("daemon: jobs still running after %s", r.opts.ShutdownTimeout)
		return ErrShutdownTimeout
	}
	log.Info("daemon: stopped")
	return err
}

func (r *Runner) waitJobs(app *App) bool {
	done := make(chan struct{})
	go func() {
		app.Host.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(r.opts.ShutdownTimeout):
		return false
	}
}

// Shutdown asks a running daemon to stop; Start returns once it has.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return ErrNotRunning
	}
	r.cancel()
	return nil
}
