package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/procexpect"
	"github.com/giantswarm/procexpect/internal/config"
	"github.com/giantswarm/procexpect/internal/sentinel"
)

// errFailed reports a completed run whose results differ. It has already
// been reported on stdout, so execute only turns it into exit code 1.
const errFailed = sentinel.Error("check failed")

// errLocked is returned by run --no-wait when another run holds the lock.
const errLocked = sentinel.Error("another run holds the lock")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "bcctest",
		Short: "Check pgbouncer bcc replication under pgbench load",
		Long: `bcctest starts two postgres servers with pgbouncer in front of them in bcc
mode, runs pgbench through pgbouncer, and then compares pgbench_history on
both servers. The servers must end up identical.

Configuration is read from a TOML file (--config) on top of the built-in
defaults; flags override both.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "bcctest version %s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(&g))
	root.AddCommand(newHistoryCmd(&g))
	root.AddCommand(newConfigCmd(&g))
	return root
}

// execute runs the command line args and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// loadConfig returns the defaults, overlaid by the config file if one was
// given.
func (g *globalFlags) loadConfig() (config.Config, error) {
	if g.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(g.configPath)
}

// logger builds the command's logger and routes procexpect's messages into
// it.
func (g *globalFlags) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", g.logLevel, err)
	}
	if w == nil {
		w = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	procexpect.SetLogger(log.With("component", "procexpect"))
	return log, nil
}
