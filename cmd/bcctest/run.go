package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/giantswarm/procexpect/internal/bcc"
	"github.com/giantswarm/procexpect/internal/config"
	"github.com/giantswarm/procexpect/internal/history"
	"github.com/giantswarm/procexpect/internal/lock"
)

// runFlags mirror the config fields that can be overridden on the command
// line. Only flags the user actually set are applied.
type runFlags struct {
	primaryPort   int
	secondaryPort int
	bouncerPort   int
	database      string
	user          string
	pgbouncer     string
	duration      time.Duration
	jobs          int
	clients       int
	settle        time.Duration
	fault         string
	outputDir     string
	transcriptDir string
	historyDB     string
	noHistory     bool
	noWait        bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the consistency check",
		Long: `Run the consistency check once. Prints "ok" and exits 0 when both servers
hold the same pgbench history; prints "FAILED" and exits 1 otherwise.

Only one run may be active per host: runs serialise on a lock file because
they bind fixed ports and may change the host firewall. With --no-wait a
run fails at once instead of waiting for the lock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			log, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runCheck(cmd, cfg, f, log)
		},
	}

	f.bind(cmd.Flags())
	return cmd
}

func (f *runFlags) bind(fl *pflag.FlagSet) {
	fl.IntVar(&f.primaryPort, "primary-port", 0, "primary postgres port (0 picks a free one)")
	fl.IntVar(&f.secondaryPort, "secondary-port", 0, "secondary postgres port (0 picks a free one)")
	fl.IntVar(&f.bouncerPort, "bouncer-port", 0, "pgbouncer listen port (0 picks a free one)")
	fl.StringVar(&f.database, "database", "", "database name")
	fl.StringVarP(&f.user, "user", "U", "", "database user")
	fl.StringVar(&f.pgbouncer, "pgbouncer", "", "pgbouncer binary")
	fl.DurationVarP(&f.duration, "duration", "T", 0, "pgbench duration")
	fl.IntVarP(&f.jobs, "jobs", "j", 0, "pgbench threads")
	fl.IntVar(&f.clients, "clients", 0, "pgbench clients")
	fl.DurationVar(&f.settle, "settle", 0, "time no daemon may die after the bench starts and ends")
	fl.StringVar(&f.fault, "fault", "", "fault injected into the secondary server: none, kill or block")
	fl.StringVar(&f.outputDir, "output-dir", "", "directory for <name>.output files on mismatch")
	fl.StringVar(&f.transcriptDir, "transcript-dir", "", "keep one output log per spawned process here")
	fl.StringVar(&f.historyDB, "history-db", "", "sqlite database runs are recorded in")
	fl.BoolVar(&f.noHistory, "no-history", false, "do not record this run")
	fl.BoolVar(&f.noWait, "no-wait", false, "fail instead of waiting when another run holds the lock")
}

// apply copies every flag the user set into cfg.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("primary-port", func() { cfg.Primary.Port = f.primaryPort })
	set("secondary-port", func() { cfg.Secondary.Port = f.secondaryPort })
	set("bouncer-port", func() { cfg.BouncerPort = f.bouncerPort })
	set("database", func() { cfg.Database = f.database })
	set("user", func() { cfg.User = f.user })
	set("pgbouncer", func() { cfg.Binaries.Pgbouncer = f.pgbouncer })
	set("duration", func() { cfg.Bench.Duration = config.Duration(f.duration) })
	set("jobs", func() { cfg.Bench.Jobs = f.jobs })
	set("clients", func() { cfg.Bench.Clients = f.clients })
	set("settle", func() { cfg.Timeouts.Settle = config.Duration(f.settle) })
	set("fault", func() { cfg.Fault = config.Fault(f.fault) })
	set("output-dir", func() { cfg.OutputDir = f.outputDir })
	set("transcript-dir", func() { cfg.TranscriptDir = f.transcriptDir })
	set("history-db", func() { cfg.HistoryDB = f.historyDB })
}

func runCheck(cmd *cobra.Command, cfg config.Config, f runFlags, log *slog.Logger) error {
	ctx := cmd.Context()

	l, err := acquireLock(ctx, cfg.LockFile, f.noWait, log)
	if err != nil {
		return err
	}
	defer l.Release()

	rep, runErr := bcc.Run(ctx, cfg, log)
	if !f.noHistory && cfg.HistoryDB != "" {
		recordRun(context.WithoutCancel(ctx), cfg.HistoryDB, rep, log)
	}

	out := cmd.OutOrStdout()
	if runErr != nil {
		fmt.Fprintln(out, "FAILED")
		return runErr
	}
	for _, path := range rep.Dumps {
		fmt.Fprintf(out, "see %s\n", path)
	}
	if !rep.OK {
		fmt.Fprintln(out, "FAILED")
		return errFailed
	}
	fmt.Fprintln(out, "ok")
	return nil
}

// acquireLock takes the run lock at path. With noWait it returns errLocked
// at once when another run holds it.
func acquireLock(ctx context.Context, path string, noWait bool, log *slog.Logger) (*lock.Lock, error) {
	if !noWait {
		return lock.Acquire(ctx, path, log)
	}
	l, err := lock.TryAcquire(path, log)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: %s", errLocked, path)
	}
	return l, nil
}

// recordRun stores rep in the history database. Failures are logged only;
// they do not change the outcome of the run.
func recordRun(ctx context.Context, path string, rep bcc.Report, log *slog.Logger) {
	store, err := history.Open(ctx, path, log)
	if err != nil {
		log.Warn("open history", "error", err)
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("close history", "error", err)
		}
	}()

	id, err := store.Record(ctx, history.Run{
		StartedAt: rep.Started,
		Duration:  rep.Duration,
		OK:        rep.OK,
		Fault:     string(rep.Fault),
		Rows:      rep.Rows,
		Detail:    rep.Detail,
	})
	if err != nil {
		log.Warn("record run", "error", err)
		return
	}
	log.Info("run recorded", "id", id)
}
