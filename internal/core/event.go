package core

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// NoTimeout makes ReadLine and Expect block until an event arrives or the
// context is canceled.
const NoTimeout time.Duration = -1

// EventKind says what a multiplexer read produced.
type EventKind int

const (
	// EventTimeout means nothing qualifying happened before the deadline.
	// Name and Line are empty.
	EventTimeout EventKind = iota

	// EventLine carries one output line of the named process, terminator
	// stripped.
	EventLine

	// EventExit means the named process closed its output and was reaped.
	// Its exit code is pending until read with ExitCode.
	EventExit
)

// String returns the name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventTimeout:
		return "timeout"
	case EventLine:
		return "line"
	case EventExit:
		return "exit"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is the result of one multiplexer read.
type Event struct {
	Kind EventKind
	Name string
	Line string
}

// String formats the event for logs and test failures.
func (e Event) String() string {
	switch e.Kind {
	case EventLine:
		return fmt.Sprintf("[%s] %s", e.Name, e.Line)
	case EventExit:
		return fmt.Sprintf("[%s] exited", e.Name)
	default:
		return e.Kind.String()
	}
}

// Patterns maps a process name to the exact lines accepted from it.
//
// A nil or empty Patterns accepts nothing: Expect then only reports process
// exits and timeouts. A name mapped to an empty list never matches.
type Patterns map[string][]string

// Match reports whether line, with surrounding whitespace trimmed, is one of
// the accepted lines for name, and returns the trimmed line.
func (p Patterns) Match(name, line string) (string, bool) {
	accepted, ok := p[name]
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(line)
	return trimmed, slices.Contains(accepted, trimmed)
}

// Result is the captured output of one process.
type Result struct {
	// ExitCode is the exit status, or the negated signal number when the
	// process was killed by a signal.
	ExitCode int

	// Lines holds every line in the order the process wrote them. It is
	// nil when the process wrote nothing.
	Lines []string
}
