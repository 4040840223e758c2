package procexpect

import (
	"log/slog"

	"github.com/giantswarm/procexpect/internal/core"
)

// SetLogger replaces the package-level logger used by procexpect.
// The provided logger should already carry any attributes the caller wants;
// procexpect only adds per-process attributes such as "process".
//
// Sessions capture the logger when New is called, so SetLogger affects
// sessions created afterwards. If l is nil, the logger resets to
// slog.Default() with a "component" attribute. Call SetLogger(nil) after
// slog.SetDefault() to pick up the change.
//
// SetLogger is safe to call concurrently; for a strict happens-before
// guarantee call it in TestMain before m.Run.
//
// Example:
//
//	procexpect.SetLogger(myLogger.With("component", "procexpect"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
