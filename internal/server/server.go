// Package server is the daemon's control plane: JSON-RPC 2.0 over HTTP and
// WebSocket, plus prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/lexipath/lexisync/internal/jobs"
	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/internal/scheduler"
	"github.com/lexipath/lexisync/internal/syncer"
	"github.com/lexipath/lexisync/pkg/logger"
)

// Paths served by Handler.
const (
	PathRPC     = "/jsonrpc"
	PathRPCWS   = "/jsonrpc/ws"
	PathMetrics = "/metrics"
	PathHealth  = "/healthz"
)

type JobRunner interface {
	Run(ctx context.Context, tag string) (jobs.Outcome, error)
}

type Schedule interface {
	Jobs(ctx context.Context) ([]scheduler.JobInfo, error)
	CancelByTag(ctx context.Context, tag string) error
}

type Content interface {
	ResolveToday(ctx context.Context, owner string, today model.Date) (*syncer.ContentResult, error)
	ResolveHistoryPage(ctx context.Context, owner string, limit, offset int) (*syncer.HistoryResult, error)
}

type Owners interface {
	Owner(ctx context.Context) (string, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// Config holds the RPC secret and the version reported by system.getVersion.
// An empty Secret rejects every RPC request.
type Config struct {
	Secret  string
	Version string
	Commit  string
}

type Dependencies struct {
	Jobs     JobRunner
	Schedule Schedule
	Content  Content
	Owners   Owners
	Sweeper  Sweeper
	// Metrics is mounted at PathMetrics when set.
	Metrics  http.Handler
	Notifier *Notifier
	Logger   logger.Logger
	Now      func() time.Time
}

type Server struct {
	cfg      Config
	deps     Dependencies
	log      logger.Logger
	now      func() time.Time
	methods  handler.Map
	bridge   jhttp.Bridge
	notifier *Notifier

	mu        sync.Mutex
	http      *http.Server
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func New(cfg Config, deps Dependencies) *Server {
	s := &Server{cfg: cfg, deps: deps, log: deps.Logger, now: deps.Now, notifier: deps.Notifier}
	if s.log == nil {
		s.log = logger.NewNopLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.notifier == nil {
		s.notifier = NewNotifier(s.log)
	}
	s.methods = s.buildMethods()
	s.bridge = jhttp.NewBridge(s.methods, nil)
	return s
}

func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler routes the control plane endpoints. Metrics and health are not
// guarded by the secret.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(PathRPC, requireToken(s.cfg.Secret, s.bridge))
	mux.Handle(PathRPCWS, requireToken(s.cfg.Secret, http.HandlerFunc(s.serveWS)))
	if s.deps.Metrics != nil {
		mux.Handle(PathMetrics, s.deps.Metrics)
	}
	mux.HandleFunc(PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	// WebSocket sessions outlive Shutdown unless their context is cancelled.
	base, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	s.cancel = cancel
	srv := s.http
	s.mu.Unlock()

	s.log.Info("rpc: listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes the bridge.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.http, s.cancel
	s.mu.Unlock()
	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
		cancel()
	}
	s.Close()
	return err
}

// Close releases the jrpc2 bridge.
func (s *Server) Close() {
	s.closeOnce.Do(func() { s.bridge.Close() })
}
