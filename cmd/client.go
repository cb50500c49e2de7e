package cmd

import (
	"context"
	"net/http"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/urfave/cli"

	"github.com/lexipath/lexisync/cmd/common"
	"github.com/lexipath/lexisync/internal/config"
	"github.com/lexipath/lexisync/internal/server"
)

// rpcClient is the part of *jrpc2.Client the commands use.
type rpcClient interface {
	CallResult(ctx context.Context, method string, params, result any) error
	Close() error
}

// bearerDoer adds the control secret to every request of the channel.
type bearerDoer struct {
	secret string
	client *http.Client
}

func (b bearerDoer) Do(req *http.Request) (*http.Response, error) {
	if b.secret != "" {
		req.Header.Set("Authorization", "Bearer "+b.secret)
	}
	return b.client.Do(req)
}

var newRPCClient = func(cfg *config.Config) rpcClient {
	ch := jhttp.NewChannel("http://"+cfg.RPCAddr+server.PathRPC, &jhttp.ChannelOptions{
		Client: controlDoer(cfg),
	})
	return jrpc2.NewClient(ch, nil)
}

// controlDoer talks to the daemon. Its timeout is the control-plane budget,
// not the backend one.
func controlDoer(cfg *config.Config) bearerDoer {
	return bearerDoer{
		secret: cfg.RPCSecret,
		client: &http.Client{Timeout: cfg.RPCTimeout},
	}
}

// callDaemon performs one call against the running daemon. Failures are
// printed and reported as false.
func callDaemon(ctx *cli.Context, cmd, method string, params, result any) bool {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, cmd, "load_config", err)
		return false
	}
	client := newRPCClient(cfg)
	defer client.Close()
	if err := client.CallResult(context.Background(), method, params, result); err != nil {
		common.PrintRuntimeErr(ctx, cmd, method, err)
		return false
	}
	return true
}
