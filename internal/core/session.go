package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/giantswarm/procexpect/internal/process"
	"github.com/giantswarm/procexpect/internal/sentinel"
)

// ErrUnsupportedSignal is returned by Signal for an os.Signal that is not a
// syscall.Signal.
const ErrUnsupportedSignal = sentinel.Error("unsupported signal")

// Session drives a set of named child processes from a single goroutine:
// spawning them, reading their merged output as events, matching lines,
// collecting full output, and killing everything at teardown.
//
// Session is not safe for concurrent use. Every method must be called from
// the same goroutine, or callers must serialize access themselves.
type Session struct {
	cfg         SessionConfig
	reg         *Registry
	mux         *Multiplexer
	transcripts *Transcripts
	log         *slog.Logger
}

// NewSession creates a Session from cfg. It starts nothing.
//
// Panics if cfg is invalid, since invalid config is a programmer error.
func NewSession(cfg SessionConfig) *Session {
	if err := cfg.Validate(); err != nil {
		panic("procexpect: invalid session config: " + err.Error())
	}
	log := Logger()
	transcripts := NewTranscripts(cfg.TranscriptDir, log)
	reg := NewRegistry(process.SpawnConfig{Dir: cfg.Dir, Env: cfg.Env}, log)
	return &Session{
		cfg:         cfg,
		reg:         reg,
		mux:         NewMultiplexer(reg, transcripts, cfg.MaxLineSize, log),
		transcripts: transcripts,
		log:         log,
	}
}

// Spawn starts argv as a process named name. The process runs immediately;
// its output is only read by ReadLine, Expect and Capture.
//
// Returns ErrNameInUse if a live process already has the name, and an error
// wrapping ErrSpawn if the program cannot be started.
func (s *Session) Spawn(name string, argv ...string) error {
	if _, err := s.reg.Spawn(name, argv); err != nil {
		return err
	}
	if err := s.transcripts.Open(name); err != nil {
		s.log.Warn("transcript unavailable", "process", name, "error", err)
	}
	return nil
}

// Kill sends SIGKILL to the process group of name and returns without
// waiting. The exit is reported by a later read.
func (s *Session) Kill(name string) error {
	return s.reg.Signal(name, syscall.SIGKILL)
}

// Signal sends sig to the process group of name and returns without waiting.
func (s *Session) Signal(name string, sig os.Signal) error {
	ssig, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("signal %q with %v: %w", name, sig, ErrUnsupportedSignal)
	}
	return s.reg.Signal(name, ssig)
}

// ExitCode returns the exit code of a reaped process once. See
// Registry.ExitCode.
func (s *Session) ExitCode(name string) (int, bool) {
	return s.reg.ExitCode(name)
}

// Live reports whether any process is live, or whether all of names are.
func (s *Session) Live(names ...string) bool {
	return s.reg.Live(names...)
}

// ReadLine returns the next event from any live process, waiting at most
// timeout. NoTimeout waits without limit.
func (s *Session) ReadLine(ctx context.Context, timeout time.Duration) (Event, error) {
	return s.mux.ReadLine(ctx, timeout)
}

// discard hands an event the caller did not ask for to the discard hook.
func (s *Session) discard(ev Event) {
	if s.cfg.DiscardFunc != nil {
		s.cfg.DiscardFunc(ev)
		return
	}
	switch ev.Kind {
	case EventLine:
		s.log.Debug("discarding line", "process", ev.Name, "line", ev.Line)
	case EventExit:
		s.log.Debug("discarding exit", "process", ev.Name)
	}
}
