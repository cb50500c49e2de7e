package cmd

import (
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/lexipath/lexisync/internal/config"
)

var loadConfigFile = config.Load

// loadConfig reads the config file and applies the global flags on top.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	path := ctx.GlobalString("config")
	if path == "" {
		dir := ctx.GlobalString("data-dir")
		if dir == "" {
			dir = config.DefaultDataDir()
		}
		path = filepath.Join(dir, config.FileName)
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if v := ctx.GlobalString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := ctx.GlobalString("api-url"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := ctx.GlobalString("rpc-addr"); v != "" {
		cfg.RPCAddr = v
	}
	if v := ctx.GlobalString("secret"); v != "" {
		cfg.RPCSecret = v
	}
	if v := ctx.GlobalString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
