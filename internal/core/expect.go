package core

import (
	"context"
	"time"
)

// Expect reads events until one of three things happens:
//
//   - a line from a process named in patterns equals, after trimming
//     surrounding whitespace, one of the lines accepted for it: returns
//     EventLine with the trimmed line;
//   - any process exits, whether named in patterns or not: returns
//     EventExit at once;
//   - timeout elapses: returns EventTimeout.
//
// Every other line goes to the discard hook. The timeout is turned into one
// absolute deadline up front, so a steady stream of unmatched lines cannot
// extend it. NoTimeout waits without limit. With no live process there is
// nothing to wait for and Expect returns EventTimeout immediately.
//
// Expect(ctx, nil, d) is the way to assert that nothing dies for d.
func (s *Session) Expect(ctx context.Context, patterns Patterns, timeout time.Duration) (Event, error) {
	deadline := deadlineFor(timeout)
	for s.reg.Live() {
		ev, err := s.mux.ReadLineUntil(ctx, deadline)
		if err != nil {
			return Event{}, err
		}
		switch ev.Kind {
		case EventExit:
			return ev, nil
		case EventLine:
			if line, ok := patterns.Match(ev.Name, ev.Line); ok {
				ev.Line = line
				return ev, nil
			}
			s.discard(ev)
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return Event{Kind: EventTimeout}, nil
		}
	}
	return Event{Kind: EventTimeout}, nil
}
