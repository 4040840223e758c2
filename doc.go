// Package procexpect drives long-running external processes from integration
// tests: spawn them by name, wait for specific lines of their output under
// deadlines, notice when one dies, collect full output, and kill everything
// at teardown.
//
// Each process has its stdout and stderr merged into one pipe. A Session
// waits on all of those pipes at once with a single poll(2) call on the
// caller's goroutine, so there is no goroutine per process and the lines of
// each process arrive in the order it wrote them.
//
// # Basic Usage
//
//	import "github.com/giantswarm/procexpect"
//
//	ctx := context.Background()
//
//	s := procexpect.New()
//	defer s.Finish()
//
//	if err := s.Spawn("pg", "postgres", "-p", "5432", "-D", dataDir); err != nil {
//	    log.Fatal(err)
//	}
//	ev, err := s.Expect(ctx, procexpect.Patterns{
//	    "pg": {"database system is ready to accept connections"},
//	}, 30*time.Second)
//	switch {
//	case err != nil:
//	    log.Fatal(err)
//	case ev.Kind == procexpect.EventExit:
//	    log.Fatalf("%s died during startup", ev.Name)
//	case ev.Kind == procexpect.EventTimeout:
//	    log.Fatal("postgres did not become ready")
//	}
//
// # Events
//
// ReadLine, Expect and Capture all consume the same event stream. An event
// is one output line (EventLine), the exit of a process (EventExit), or
// EventTimeout. Timeouts and exits are normal outcomes of a test and are
// never returned as errors.
//
// Expect returns on the first accepted line, on any exit (whether or not
// the process is named in the patterns), or at the deadline. The deadline is
// fixed when Expect is called, so unmatched output does not extend it.
// Expect(ctx, nil, d) is the idiom for "nothing dies for d".
//
// # Exit Codes
//
// When a process closes its output it is reaped and its exit code is held
// until ExitCode reads it. Each code is delivered exactly once: a second
// ExitCode call reports false. A process killed by a signal reports the
// negated signal number (-9 for SIGKILL). Capture consumes the codes of the
// processes it captures and returns them in Result.
//
// # Dropped Output
//
// Expect and Capture drop the lines they were not asked for; there is no
// side buffer. Every dropped event is passed to the discard hook
// (WithDiscardFunc), which logs at Debug level by default. Tests that need
// the output of a process should Capture it, or enable transcripts with
// WithTranscriptDir to keep a file per process.
//
// # Teardown
//
// Finish sends SIGKILL to the process group of every live process, waits
// for them (bounded by WithReapTimeout), and forgets every name and unread
// exit code. It is idempotent and safe to defer. On Linux children also get
// SIGKILL if the test binary itself dies.
//
// # Logging
//
// procexpect logs through log/slog. Use SetLogger to route its messages
// into the caller's logger.
package procexpect
