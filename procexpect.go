package procexpect

import (
	"context"
	"os"
	"time"

	"github.com/giantswarm/procexpect/internal/core"
)

// Compile-time interface satisfaction check.
var _ Session = (*sessionWrapper)(nil)

// sessionWrapper wraps core.Session to implement the Session interface.
//
// The core.Session is stored as a named field rather than embedded so
// callers cannot reach internal methods through a type assertion.
type sessionWrapper struct {
	s *core.Session
}

// New returns a Session configured by opts. It performs no I/O.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Returns Session interface by design for testability (mockable).
func New(opts ...SessionOption) Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &sessionWrapper{s: core.NewSession(cfg.SessionConfig)}
}

func (w *sessionWrapper) Spawn(name string, argv ...string) error {
	return w.s.Spawn(name, argv...)
}

func (w *sessionWrapper) Kill(name string) error {
	return w.s.Kill(name)
}

func (w *sessionWrapper) Signal(name string, sig os.Signal) error {
	return w.s.Signal(name, sig)
}

func (w *sessionWrapper) ExitCode(name string) (int, bool) {
	return w.s.ExitCode(name)
}

func (w *sessionWrapper) Live(names ...string) bool {
	return w.s.Live(names...)
}

func (w *sessionWrapper) ReadLine(ctx context.Context, timeout time.Duration) (Event, error) {
	return w.s.ReadLine(ctx, timeout)
}

func (w *sessionWrapper) Expect(ctx context.Context, patterns Patterns, timeout time.Duration) (Event, error) {
	return w.s.Expect(ctx, patterns, timeout)
}

func (w *sessionWrapper) Capture(ctx context.Context, names ...string) (map[string]Result, error) {
	return w.s.Capture(ctx, names...)
}

func (w *sessionWrapper) Run(ctx context.Context, argv ...string) (int, []string, error) {
	return w.s.Run(ctx, argv...)
}

func (w *sessionWrapper) Finish() error {
	return w.s.Finish()
}
