package core

import (
	"context"
	"fmt"
)

// Capture reads events until every process in names has exited, and
// returns each one's output lines and exit code. It is a barrier: nothing is
// returned before the last of them exits, and there is no timeout (cancel
// ctx to give up).
//
// The exit codes of captured processes are consumed; ExitCode reports false
// for them afterwards. A name that already exited is complete at once, with
// its pending exit code and no lines. Lines and exits of other processes go
// to the discard hook.
//
// Every name must be live or hold a pending exit code; otherwise Capture
// returns ErrUnknownName before reading anything.
func (s *Session) Capture(ctx context.Context, names ...string) (map[string]Result, error) {
	for _, name := range names {
		if !s.reg.Registered(name) {
			return nil, fmt.Errorf("capture %q: %w", name, ErrUnknownName)
		}
	}

	results := make(map[string]Result, len(names))
	waiting := make(map[string]struct{}, len(names))
	for _, name := range names {
		if s.reg.Live(name) {
			waiting[name] = struct{}{}
			results[name] = Result{}
			continue
		}
		if _, done := results[name]; done {
			continue
		}
		code, _ := s.reg.ExitCode(name)
		results[name] = Result{ExitCode: code}
	}

	for len(waiting) > 0 {
		ev, err := s.mux.ReadLineUntil(ctx, noDeadline)
		if err != nil {
			return nil, err
		}
		if _, ok := waiting[ev.Name]; !ok {
			s.discard(ev)
			continue
		}
		r := results[ev.Name]
		switch ev.Kind {
		case EventLine:
			r.Lines = append(r.Lines, ev.Line)
		case EventExit:
			r.ExitCode, _ = s.reg.ExitCode(ev.Name)
			delete(waiting, ev.Name)
		}
		results[ev.Name] = r
	}
	return results, nil
}
