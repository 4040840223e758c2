package core

import (
	"context"
	"errors"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/procexpect/internal/process"
)

// Finish kills every live process group with SIGKILL, waits up to
// ReapTimeout for each of them in parallel so no zombies are left behind,
// and resets the session to empty: no live processes and no pending exit
// codes. Transcripts are flushed and closed.
//
// Finish is idempotent and safe with nothing spawned. The session stays
// usable afterwards. The returned error joins every reap and close failure
// and is informational; the state is reset regardless.
func (s *Session) Finish() error {
	handles := s.reg.Reset()
	for _, h := range handles {
		if err := h.Signal(syscall.SIGKILL); err != nil && !errors.Is(err, process.ErrNotLive) {
			s.log.Debug("kill during finish failed", "process", h.Name(), "error", err)
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	for _, h := range handles {
		g.Go(func() error {
			if err := h.Discard(s.cfg.ReapTimeout); err != nil {
				s.log.Warn("process did not exit after kill", "process", h.Name(), "pid", h.PID(), "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	errs = append(errs, s.transcripts.CloseAll(), s.mux.Close())
	if len(handles) > 0 {
		s.log.Debug("session finished", "killed", len(handles))
	}
	return errors.Join(errs...)
}

// Run executes argv to completion outside the session and returns its exit
// code and merged output lines. It uses the session's working directory and
// environment. A non-zero exit is not an error.
func (s *Session) Run(ctx context.Context, argv ...string) (int, []string, error) {
	return process.Run(ctx, argv, process.SpawnConfig{Dir: s.cfg.Dir, Env: s.cfg.Env})
}
