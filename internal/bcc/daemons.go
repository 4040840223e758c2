package bcc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/procexpect"
	"github.com/giantswarm/procexpect/internal/config"
	"github.com/giantswarm/procexpect/internal/netutil"
	"github.com/giantswarm/procexpect/internal/process"
	"github.com/giantswarm/procexpect/internal/sentinel"
)

// Lines the daemons print once they accept connections.
const (
	postgresReadyLine  = "database system is ready to accept connections"
	pgbouncerReadyLine = "process up"
)

// PgbouncerName is the process name pgbouncer is spawned under.
const PgbouncerName = "pgbouncer"

// probeInterval is the pause between TCP probes of the pgbouncer port.
const probeInterval = 100 * time.Millisecond

// Sentinel errors of the workflow steps.
const (
	// ErrInitdb is returned when an initdb run exits non-zero.
	ErrInitdb = sentinel.Error("initdb failed")
	// ErrNotReady is returned when a daemon does not print its readiness
	// line in time.
	ErrNotReady = sentinel.Error("daemon not ready")
	// ErrDaemonExited is returned when a daemon exits while it is needed.
	ErrDaemonExited = sentinel.Error("daemon exited")
)

// InitDBs runs "initdb <dir>" for every dir concurrently and waits for all
// of them. It returns an error wrapping ErrInitdb naming every run that
// exited non-zero.
func InitDBs(ctx context.Context, s procexpect.Session, initdb string, dirs []string) error {
	for _, dir := range dirs {
		if err := s.Spawn(initdbName(dir), initdb, dir); err != nil {
			return fmt.Errorf("spawn initdb for %s: %w", dir, err)
		}
	}

	var failed []string
	for s.Live() {
		ev, err := s.Expect(ctx, nil, procexpect.NoTimeout)
		if err != nil {
			return fmt.Errorf("wait for initdb: %w", err)
		}
		if ev.Kind != procexpect.EventExit {
			continue
		}
		if code, ok := s.ExitCode(ev.Name); ok && code != 0 {
			failed = append(failed, fmt.Sprintf("%s (exit code %d)", ev.Name, code))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrInitdb, strings.Join(failed, ", "))
	}
	return nil
}

// Backend is a postgres server to start: where it listens and its data
// directory.
type Backend struct {
	Host    string
	Port    int
	DataDir string
	// SocketDir, if set, is where the server creates its unix socket
	// instead of the compiled-in default, which often needs root.
	SocketDir string
}

func (b Backend) argv(bin string) []string {
	argv := []string{bin, "-h", b.Host, "-p", strconv.Itoa(b.Port), "-D", b.DataDir}
	if b.SocketDir != "" {
		argv = append(argv, "-k", b.SocketDir)
	}
	return argv
}

// Name is the process name the backend runs under.
func (b Backend) Name() string {
	return "postgres " + b.DataDir
}

// StartPostgres spawns "postgres -h host -p port -D dir [-k socketdir]" for every backend
// and waits until each has logged that it accepts connections. Any exit
// before that, or timeout, is an error. It returns the process names in
// backend order.
func StartPostgres(ctx context.Context, s procexpect.Session, log *slog.Logger, bin string, backends []Backend, timeout time.Duration) ([]string, error) {
	names := make([]string, 0, len(backends))
	notReady := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		name := b.Name()
		if err := s.Spawn(name, b.argv(bin)...); err != nil {
			return nil, fmt.Errorf("spawn %s: %w", name, err)
		}
		names = append(names, name)
		notReady[name] = struct{}{}
	}

	deadline := time.Now().Add(timeout)
	for len(notReady) > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: postgres after %s: %d of %d servers pending", ErrNotReady, timeout, len(notReady), len(backends))
		}
		ev, err := s.ReadLine(ctx, remaining)
		if err != nil {
			return nil, fmt.Errorf("wait for postgres: %w", err)
		}
		switch ev.Kind {
		case procexpect.EventExit:
			return nil, exitedError(s, ev.Name)
		case procexpect.EventLine:
			log.Debug("output", "process", ev.Name, "line", ev.Line)
			if _, ok := notReady[ev.Name]; ok && strings.Contains(ev.Line, postgresReadyLine) {
				log.Info("postgres ready", "process", ev.Name)
				delete(notReady, ev.Name)
			}
		}
	}
	return names, nil
}

// StartPgbouncer spawns pgbouncer with the config file at confPath, waits
// for its "process up" line and then until its listen port accepts TCP
// connections.
func StartPgbouncer(ctx context.Context, s procexpect.Session, log *slog.Logger, bin, confPath, host string, port int, timeout time.Duration) error {
	if err := s.Spawn(PgbouncerName, bin, confPath); err != nil {
		return fmt.Errorf("spawn pgbouncer: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for up := false; !up; {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: pgbouncer did not log %q within %s", ErrNotReady, pgbouncerReadyLine, timeout)
		}
		ev, err := s.ReadLine(ctx, remaining)
		if err != nil {
			return fmt.Errorf("wait for pgbouncer: %w", err)
		}
		switch ev.Kind {
		case procexpect.EventExit:
			return exitedError(s, ev.Name)
		case procexpect.EventLine:
			log.Debug("output", "process", ev.Name, "line", ev.Line)
			up = ev.Name == PgbouncerName && strings.Contains(ev.Line, pgbouncerReadyLine)
		}
	}

	return process.WaitReady(ctx, process.ReadyConfig{
		Interval: probeInterval,
		Timeout:  max(time.Until(deadline), probeInterval),
		Name:     PgbouncerName,
		Port:     port,
		Logger:   log,
		Exited:   func() bool { return !s.Live(PgbouncerName) },
	}, func(ctx context.Context, _ int) (bool, error) {
		return netutil.ProbeTCP(ctx, host, port)
	})
}

// exitedError consumes the exit code of name and reports it as
// ErrDaemonExited.
func exitedError(s procexpect.Session, name string) error {
	code, _ := s.ExitCode(name)
	return fmt.Errorf("%w: %s (exit code %d)", ErrDaemonExited, name, code)
}

func initdbName(dir string) string {
	return "initdb " + dir
}

// backendsFromConfig pairs the configured servers with their data
// directories.
func backendsFromConfig(cfg config.Config, dirs []string) ([]Backend, error) {
	servers := []config.Backend{cfg.Primary, cfg.Secondary}
	if len(dirs) != len(servers) {
		return nil, errors.New("need one data directory per backend")
	}
	backends := make([]Backend, len(servers))
	for i, srv := range servers {
		backends[i] = Backend{Host: srv.Host, Port: srv.Port, DataDir: dirs[i], SocketDir: dirs[i]}
	}
	return backends, nil
}
