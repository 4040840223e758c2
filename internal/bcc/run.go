package bcc

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/procexpect"
	"github.com/giantswarm/procexpect/internal/config"
	"github.com/giantswarm/procexpect/internal/fileutil"
	"github.com/giantswarm/procexpect/internal/netutil"
	"github.com/giantswarm/procexpect/internal/sentinel"
)

// ErrBench is returned when pgbench cannot initialise the database.
const ErrBench = sentinel.Error("pgbench failed")

const pgbenchName = "pgbench"

// pollInterval bounds each read while waiting for pgbench.
const pollInterval = time.Second

// revertTimeout bounds the firewall cleanup on the way out, which runs even
// after ctx is canceled.
const revertTimeout = 30 * time.Second

// Ports are the ports a run used, after free ports were picked for the
// ones configured as 0.
type Ports struct {
	Primary   int
	Secondary int
	Bouncer   int
}

// Report is the outcome of Run.
type Report struct {
	// OK is true when both servers returned identical pgbench histories.
	OK    bool
	Fault config.Fault
	Ports Ports
	// Rows is the number of lines of the common output when OK.
	Rows int
	// Summary is psql's row count footer when OK.
	Summary string
	// Detail says why the run is not OK; empty otherwise.
	Detail string
	// Dumps lists the <name>.output files written when the outputs differ,
	// followed by the copy of the pgbouncer log if there was one.
	Dumps    []string
	Started  time.Time
	Duration time.Duration
}

type workflow struct {
	cfg       config.Config
	s         procexpect.Session
	fw        *Firewall
	log       *slog.Logger
	tolerated map[string]bool
}

// Run performs the complete check described by cfg:
//
//  1. initdb two data directories;
//  2. start both postgres servers and pgbouncer in front of them;
//  3. initialise and run pgbench through pgbouncer, applying cfg.Fault to
//     the secondary server once the bench is running;
//  4. require that no daemon dies for the settle time after the bench starts
//     and after it ends;
//  5. compare pgbench_history on both servers.
//
// Every process is killed and every firewall rule and temporary file is
// removed before Run returns, whatever the outcome. An error means the check
// could not be carried out; differing results are reported through
// Report.OK and Report.Dumps.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger) (rep Report, retErr error) {
	if log == nil {
		log = slog.Default()
	}
	rep = Report{Fault: cfg.Fault, Started: time.Now()}
	defer func() {
		rep.Duration = time.Since(rep.Started)
		if retErr != nil && rep.Detail == "" {
			rep.Detail = retErr.Error()
		}
	}()

	if err := cfg.Validate(); err != nil {
		return rep, fmt.Errorf("invalid config: %w", err)
	}

	cfg, err := resolvePorts(cfg, netutil.NewPortRegistry(log))
	if err != nil {
		return rep, err
	}
	rep.Ports = Ports{Primary: cfg.Primary.Port, Secondary: cfg.Secondary.Port, Bouncer: cfg.BouncerPort}

	workdir, err := os.MkdirTemp("", "bcctest-*")
	if err != nil {
		return rep, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workdir); err != nil {
			log.Warn("remove work dir", "dir", workdir, "error", err)
		}
	}()

	opts := []procexpect.SessionOption{
		procexpect.WithReapTimeout(cfg.Timeouts.Reap.Std()),
		procexpect.WithDiscardFunc(func(ev procexpect.Event) {
			log.Debug("dropped", "event", ev.String())
		}),
	}
	if cfg.TranscriptDir != "" {
		opts = append(opts, procexpect.WithTranscriptDir(cfg.TranscriptDir))
	}
	s := procexpect.New(opts...)
	defer func() {
		if err := s.Finish(); err != nil {
			log.Warn("finish session", "error", err)
		}
	}()

	w := &workflow{
		cfg:       cfg,
		s:         s,
		fw:        NewFirewall(s, cfg.Binaries.Sudo, cfg.Binaries.Iptables, log),
		log:       log,
		tolerated: make(map[string]bool),
	}
	defer func() {
		revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
		defer cancel()
		if err := w.fw.Revert(revertCtx); err != nil {
			log.Warn("revert firewall rules", "error", err)
		}
	}()

	err = w.run(ctx, workdir, &rep)
	return rep, err
}

func (w *workflow) run(ctx context.Context, workdir string, rep *Report) error {
	cfg := w.cfg
	dirs := []string{filepath.Join(workdir, "primary"), filepath.Join(workdir, "secondary")}

	w.log.Info("initdb")
	if err := InitDBs(ctx, w.s, cfg.Binaries.Initdb, dirs); err != nil {
		return err
	}

	backends, err := backendsFromConfig(cfg, dirs)
	if err != nil {
		return err
	}
	w.log.Info("launch postgres")
	names, err := StartPostgres(ctx, w.s, w.log, cfg.Binaries.Postgres, backends, cfg.Timeouts.Startup.Std())
	if err != nil {
		return err
	}
	victim := names[len(names)-1]

	w.log.Info("launch pgbouncer")
	conf := PgbouncerConfig{
		ListenHost: cfg.BouncerHost,
		ListenPort: cfg.BouncerPort,
		Backends:   backends,
		Database:   cfg.Database,
		User:       cfg.User,
		LogFile:    cfg.PgbouncerLog,
	}
	confPath := filepath.Join(workdir, "pgbouncer.ini")
	if err := conf.Write(confPath); err != nil {
		return err
	}
	if err := StartPgbouncer(ctx, w.s, w.log, cfg.Binaries.Pgbouncer, confPath, cfg.BouncerHost, cfg.BouncerPort, cfg.Timeouts.Startup.Std()); err != nil {
		return err
	}

	bouncer := Target{Host: cfg.BouncerHost, Port: cfg.BouncerPort, Database: cfg.Database, User: cfg.User}

	w.log.Info("bench init")
	if err := w.s.Spawn(pgbenchName, PgbenchArgv(cfg.Binaries.Pgbench, bouncer, Bench{Init: true})...); err != nil {
		return fmt.Errorf("spawn pgbench: %w", err)
	}
	if err := w.waitExit(ctx, pgbenchName); err != nil {
		return err
	}
	if code, _ := w.s.ExitCode(pgbenchName); code != 0 {
		return fmt.Errorf("%w: pgbench -i exited with code %d", ErrBench, code)
	}

	bench := Bench{
		Jobs:    cfg.Bench.Jobs,
		Clients: cfg.Bench.Clients,
		Seconds: int(cfg.Bench.Duration.Std() / time.Second),
	}
	w.log.Info("launch bench", "seconds", bench.Seconds)
	if err := w.s.Spawn(pgbenchName, PgbenchArgv(cfg.Binaries.Pgbench, bouncer, bench)...); err != nil {
		return fmt.Errorf("spawn pgbench: %w", err)
	}
	if err := w.settle(ctx); err != nil {
		return err
	}

	if err := w.injectFault(ctx, victim); err != nil {
		return err
	}

	w.log.Info("wait for bench to finish")
	if err := w.waitExit(ctx, pgbenchName); err != nil {
		return err
	}
	if code, ok := w.s.ExitCode(pgbenchName); ok && code != 0 {
		w.log.Warn("pgbench exited non-zero", "code", code)
	}
	if err := w.settle(ctx); err != nil {
		return err
	}
	if err := w.fw.Revert(ctx); err != nil {
		return err
	}

	w.log.Info("check")
	psqls := make([]string, 0, len(backends))
	for _, b := range backends {
		name := PsqlName(b.Port)
		target := Target{Host: b.Host, Port: b.Port, Database: cfg.Database, User: cfg.User}
		if err := w.s.Spawn(name, PsqlArgv(cfg.Binaries.Psql, target, HistoryQuery)...); err != nil {
			return fmt.Errorf("spawn %s: %w", name, err)
		}
		psqls = append(psqls, name)
	}
	cmp, err := EqualResults(ctx, w.s, psqls...)
	if err != nil {
		return err
	}
	if cmp.Equal {
		rep.OK = true
		rep.Rows = len(cmp.Output)
		rep.Summary = cmp.Summary()
		w.log.Info("results are equal", "summary", rep.Summary)
		return nil
	}

	rep.Detail = "results not equal"
	w.log.Info("results not equal")
	rep.Dumps, err = writeDumps(cfg.OutputDir, cmp.Results, cfg.PgbouncerLog)
	for _, path := range rep.Dumps {
		w.log.Info("output written", "path", path)
	}
	return err
}

// injectFault applies the configured fault to the secondary server.
func (w *workflow) injectFault(ctx context.Context, victim string) error {
	switch w.cfg.Fault {
	case config.FaultKill:
		if err := w.s.Kill(victim); err != nil {
			return fmt.Errorf("kill %s: %w", victim, err)
		}
		w.tolerated[victim] = true
		w.log.Info("backend killed", "process", victim)
	case config.FaultBlock:
		if err := w.fw.Block(ctx, w.cfg.Secondary.Port); err != nil {
			return err
		}
	}
	return nil
}

// waitExit logs output until name exits. The exit of any other process
// that is not expected to die is an error.
func (w *workflow) waitExit(ctx context.Context, name string) error {
	for w.s.Live(name) {
		ev, err := w.s.ReadLine(ctx, pollInterval)
		if err != nil {
			return fmt.Errorf("wait for %s: %w", name, err)
		}
		switch ev.Kind {
		case procexpect.EventLine:
			w.log.Debug("output", "process", ev.Name, "line", ev.Line)
		case procexpect.EventExit:
			if ev.Name != name && !w.tolerated[ev.Name] {
				return exitedError(w.s, ev.Name)
			}
		}
	}
	return nil
}

// settle requires that no daemon exits for the configured settle time.
// pgbench finishing and the exit of a deliberately killed server are
// allowed.
func (w *workflow) settle(ctx context.Context) error {
	d := w.cfg.Timeouts.Settle.Std()
	w.log.Info("settle", "duration", d)

	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		ev, err := w.s.Expect(ctx, procexpect.Patterns{PgbouncerName: {""}}, remaining)
		if err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		switch ev.Kind {
		case procexpect.EventTimeout:
			return nil
		case procexpect.EventLine:
			w.log.Info("output", "process", ev.Name, "line", ev.Line)
		case procexpect.EventExit:
			if ev.Name != pgbenchName && !w.tolerated[ev.Name] {
				return exitedError(w.s, ev.Name)
			}
			w.log.Info("process exited", "process", ev.Name)
		}
	}
}

// resolvePorts replaces every port configured as 0 by a free one.
func resolvePorts(cfg config.Config, reg *netutil.PortRegistry) (config.Config, error) {
	var missing []*int
	for _, p := range []*int{&cfg.Primary.Port, &cfg.Secondary.Port, &cfg.BouncerPort} {
		if *p == 0 {
			missing = append(missing, p)
			continue
		}
		reg.Reserve(*p)
	}
	if len(missing) == 0 {
		return cfg, nil
	}

	ports, err := reg.AllocatePorts(len(missing))
	if err != nil {
		return cfg, fmt.Errorf("pick free ports: %w", err)
	}
	for i, p := range missing {
		*p = ports[i]
	}
	return cfg, nil
}

// writeDumps writes the output of every captured process to
// <dir>/<name>.output and copies the pgbouncer log at logPath, if it exists,
// next to them. It returns the output paths sorted by name, followed by the
// path of the log copy.
func writeDumps(dir string, results map[string]procexpect.Result, logPath string) ([]string, error) {
	names := slices.Sorted(maps.Keys(results))
	paths := make([]string, len(names))
	var g errgroup.Group
	for i, name := range names {
		paths[i] = filepath.Join(dir, name+".output")
		g.Go(func() error {
			return fileutil.WriteLines(paths[i], results[name].Lines)
		})
	}

	var logCopy string
	if logPath != "" {
		if _, err := os.Stat(logPath); err == nil {
			logCopy = filepath.Join(dir, filepath.Base(logPath))
			g.Go(func() error {
				return fileutil.CopyFile(logPath, logCopy)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("write outputs: %w", err)
	}
	if logCopy != "" {
		paths = append(paths, logCopy)
	}
	return paths, nil
}
