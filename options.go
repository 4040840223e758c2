package procexpect

import (
	"fmt"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("procexpect: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("procexpect: %s must not be empty", name))
	}
}

// SessionOption configures a Session during construction via New.
//
// With* functions panic on invalid input. Option values are normally
// constants written by the test author, so an invalid one is a programmer
// error and fails at construction, the way regexp.MustCompile does.
type SessionOption func(*sessionConfig)

// WithMaxLineSize sets the longest line returned by ReadLine, Expect and
// Capture. Longer runs of output without a newline are split into pieces of
// this size.
//
// Default: 1 MiB.
//
// Panics if n <= 0.
func WithMaxLineSize(n int) SessionOption {
	requirePositive("max line size", n)
	return func(c *sessionConfig) {
		c.MaxLineSize = n
	}
}

// WithReapTimeout sets how long Finish waits for each killed process to
// exit before giving up on it.
//
// Default: 10 seconds.
//
// Panics if d <= 0.
func WithReapTimeout(d time.Duration) SessionOption {
	requirePositive("reap timeout", d)
	return func(c *sessionConfig) {
		c.ReapTimeout = d
	}
}

// WithDir sets the working directory of spawned processes and of Run.
// Panics if dir is empty.
func WithDir(dir string) SessionOption {
	requireNonEmpty("working directory", dir)
	return func(c *sessionConfig) {
		c.Dir = dir
	}
}

// WithEnv sets the environment of spawned processes and of Run, as
// "KEY=value" entries. Without it children inherit the caller's environment.
// A nil or empty env starts children with an empty environment.
func WithEnv(env ...string) SessionOption {
	for i, kv := range env {
		requireNonEmpty(fmt.Sprintf("environment entry %d", i), kv)
	}
	return func(c *sessionConfig) {
		c.Env = append([]string{}, env...)
	}
}

// WithTranscriptDir makes the session write every line read from a process
// to <dir>/<name>.log, where unsafe characters in the name are replaced by
// '_'. The directory is created on first spawn.
//
// Panics if dir is empty.
func WithTranscriptDir(dir string) SessionOption {
	requireNonEmpty("transcript directory", dir)
	return func(c *sessionConfig) {
		c.TranscriptDir = dir
	}
}

// WithDiscardFunc sets the callback that receives every line and exit event
// Expect and Capture drop because the caller did not ask for them. It runs
// synchronously on the calling goroutine and must not call back into the
// session.
//
// Default: log the event at Debug level.
//
// Panics if fn is nil.
func WithDiscardFunc(fn func(Event)) SessionOption {
	if fn == nil {
		panic("procexpect: discard func must not be nil")
	}
	return func(c *sessionConfig) {
		c.DiscardFunc = fn
	}
}
