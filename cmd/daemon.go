package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/lexipath/lexisync/cmd/common"
	"github.com/lexipath/lexisync/internal/config"
	"github.com/lexipath/lexisync/internal/daemon"
)

type daemonRunner interface {
	Start(ctx context.Context) error
}

var (
	newRunner = func(cfg *config.Config, opts *daemon.Options) daemonRunner {
		return daemon.New(cfg, opts, nil)
	}
	pidFs afero.Fs = afero.NewOsFs()
)

func runDaemon(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "load_config", err)
		return err
	}
	if pid, err := ReadPidFile(pidFs, cfg.DataDir); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}
	if err := WritePidFile(pidFs, cfg.DataDir, os.Getpid()); err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "write_pid", err)
		return err
	}
	defer RemovePidFile(pidFs, cfg.DataDir)

	sctx, cancel := setupShutdownHandler()
	defer cancel()

	r := newRunner(cfg, &daemon.Options{
		Version: currentBuildArgs.Version,
		Commit:  currentBuildArgs.Commit,
	})
	return r.Start(sctx)
}

func stopDaemon(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "stop", "load_config", err)
		return nil
	}
	pid, err := ReadPidFile(pidFs, cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(common.Out, "Daemon is not running (PID file not found)")
			return nil
		}
		common.PrintRuntimeErr(ctx, "stop", "read_pid", err)
		return nil
	}
	if !isProcessRunning(pid) {
		fmt.Fprintf(common.Out, "Daemon is not running (stale PID %d)\n", pid)
		_ = RemovePidFile(pidFs, cfg.DataDir)
		return nil
	}
	fmt.Fprintf(common.Out, "Stopping daemon (PID %d)...\n", pid)
	if err := terminateProcess(pid); err != nil {
		common.PrintRuntimeErr(ctx, "stop", "signal", err)
		return nil
	}
	// The daemon removes its PID file on exit.
	fmt.Fprintln(common.Out, "Stop signal sent")
	return nil
}
