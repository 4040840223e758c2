package core

import (
	"log/slog"
	"sync/atomic"
)

// logger holds the logger installed with SetLogger. Nil means "derive one
// from slog.Default()".
var logger atomic.Pointer[slog.Logger]

// derived caches slog.Default().With("component", "procexpect") so sessions
// created in a tight loop do not allocate a logger each. SetLogger(nil)
// drops the cache, which is how callers pick up a later slog.SetDefault.
var derived atomic.Pointer[slog.Logger]

// Logger returns the package-level logger. Every session derives its own
// child logger from it at construction time, so changing the logger affects
// sessions created afterwards only. Safe for concurrent use.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := derived.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", "procexpect")
	if derived.CompareAndSwap(nil, l) {
		return l
	}
	// Lost the race: prefer the winner, but never return nil if a concurrent
	// SetLogger cleared the cache in between.
	if l2 := derived.Load(); l2 != nil {
		return l2
	}
	return l
}

// SetLogger installs l as the package-level logger. A nil l restores the
// default, re-derived from slog.Default() on the next Logger call.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	derived.Store(nil)
}
