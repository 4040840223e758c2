package procexpect

import (
	"context"
	"os"
	"time"

	"github.com/giantswarm/procexpect/internal/core"
)

// Session drives a set of named child processes: it spawns them, turns their
// merged stdout and stderr into a stream of line and exit events, matches
// lines against expectations, collects full output, and kills everything at
// teardown.
//
// Callers must follow this lifecycle:
//
//	New → Spawn (repeatable) → ReadLine / Expect / Capture (repeatable) → Finish
//
// Finish must run on every exit path, typically via defer, or children are
// leaked. Timeouts and process exits are reported as events, never as
// errors; errors mean misuse, a failed spawn, a canceled context, or an OS
// failure.
//
// A Session is not safe for concurrent use. All methods must be called from
// one goroutine.
type Session interface {
	// Spawn starts argv as a process named name, with stdout and stderr
	// merged into one stream. The process runs immediately and
	// independently of any reads. Its process group is killed by Kill and
	// Finish.
	//
	// Returns ErrNameInUse if a live process has the name, and an error
	// wrapping ErrSpawn if the program cannot be started. Spawning a name
	// whose exit code was never read discards that code.
	Spawn(name string, argv ...string) error

	// Kill sends SIGKILL to the process group of name and returns at once.
	// The process stays live until a later read reports its exit.
	// Returns ErrUnknownName for a name that is neither live nor exited.
	Kill(name string) error

	// Signal is Kill with a caller-chosen signal.
	Signal(name string, sig os.Signal) error

	// ExitCode returns the exit code of a process whose exit has been
	// reported, exactly once. It reports false while the process is live,
	// for unknown names, and on every later call. A process killed by a
	// signal reports the negated signal number.
	ExitCode(name string) (code int, ok bool)

	// Live reports whether any process is live when called without
	// arguments, or whether every named process is live.
	Live(names ...string) bool

	// ReadLine waits at most timeout for the next event from any live
	// process: one output line (EventLine), an exit (EventExit), or
	// EventTimeout. NoTimeout waits without limit. When several processes
	// have output, they are serviced round-robin.
	ReadLine(ctx context.Context, timeout time.Duration) (Event, error)

	// Expect reads until a line from a process named in patterns matches
	// one of its accepted lines exactly (after trimming surrounding
	// whitespace), until any process exits, or until timeout. Unmatched
	// lines go to the discard hook. Expect(ctx, nil, d) checks that nothing
	// dies within d.
	Expect(ctx context.Context, patterns Patterns, timeout time.Duration) (Event, error)

	// Capture reads until every named process has exited and returns each
	// one's lines and exit code. Output of other processes goes to the
	// discard hook. Returns ErrUnknownName, before reading anything, if a
	// name is neither live nor exited with an unread code.
	Capture(ctx context.Context, names ...string) (map[string]Result, error)

	// Run executes argv to completion outside the session and returns its
	// exit code and merged output lines. A non-zero exit is not an error.
	Run(ctx context.Context, argv ...string) (code int, lines []string, err error)

	// Finish kills every live process group, waits for the children so no
	// zombies remain, and forgets every name and unread exit code.
	// Idempotent. The returned error is informational.
	Finish() error
}

// Event is the result of one read. See EventKind.
type Event = core.Event

// EventKind says what a read produced.
type EventKind = core.EventKind

// Event kinds.
const (
	EventTimeout = core.EventTimeout
	EventLine    = core.EventLine
	EventExit    = core.EventExit
)

// NoTimeout makes ReadLine and Expect wait without limit.
const NoTimeout = core.NoTimeout

// Patterns maps a process name to the exact lines accepted from it.
type Patterns = core.Patterns

// Result is the captured output and exit code of one process.
type Result = core.Result
