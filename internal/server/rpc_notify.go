package server

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"

	"github.com/lexipath/lexisync/internal/jobs"
	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/pkg/logger"
)

// Notification methods pushed to WebSocket clients.
const (
	NotifyJobOutcome        = "job.outcome"
	NotifyContentPrefetched = "content.prefetched"
)

const notifyTimeout = 5 * time.Second

// Notifier fans notifications out to every connected WebSocket session.
type Notifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     logger.Logger
}

func NewNotifier(l logger.Logger) *Notifier {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Notifier{servers: make(map[*jrpc2.Server]struct{}), log: l}
}

func (n *Notifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.servers[srv] = struct{}{}
}

func (n *Notifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, srv)
}

// Broadcast pushes method to every session. Sessions that fail are dropped.
func (n *Notifier) Broadcast(method string, params any) {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	for _, srv := range servers {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		err := srv.Notify(ctx, method, params)
		cancel()
		if err != nil {
			n.log.Warning("rpc: push %s failed: %v", method, err)
			n.Unregister(srv)
		}
	}
}

func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

// JobOutcome has the jobs.Dispatcher hook shape.
func (n *Notifier) JobOutcome(o jobs.Outcome) {
	n.Broadcast(NotifyJobOutcome, o)
}

// PrefetchedNotification is the content.prefetched payload.
type PrefetchedNotification struct {
	Owner string     `json:"owner"`
	Date  model.Date `json:"date"`
	Word  string     `json:"word"`
}

// ContentPrefetched has the daily prefetch hook shape.
func (n *Notifier) ContentPrefetched(owner string, rec *model.ContentRecord) {
	n.Broadcast(NotifyContentPrefetched, PrefetchedNotification{Owner: owner, Date: rec.Date, Word: rec.Word})
}
