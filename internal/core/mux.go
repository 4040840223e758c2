package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/procexpect/internal/process"
)

// Multiplexer turns the merged output pipes of every live process into a
// single stream of events, one per ReadLine call.
//
// All waiting happens in one poll(2) call over every live pipe, on the
// caller's goroutine. When several processes have data, the one serviced is
// picked round-robin in spawn order starting after the last process
// serviced, so a chatty process cannot starve a quiet one. Lines of one
// process are always returned in the order it wrote them.
//
// Multiplexer is not safe for concurrent use.
type Multiplexer struct {
	reg         *Registry
	transcripts *Transcripts
	maxLine     int
	log         *slog.Logger

	poller *process.Poller // created on first wait, released by Close
	cursor uint64          // Seq of the last handle that produced an event

	fds   []int
	ready []*process.Handle
}

// NewMultiplexer creates a Multiplexer over the live processes of reg.
func NewMultiplexer(reg *Registry, transcripts *Transcripts, maxLine int, log *slog.Logger) *Multiplexer {
	return &Multiplexer{reg: reg, transcripts: transcripts, maxLine: maxLine, log: log}
}

// ReadLine waits at most timeout (NoTimeout: without limit) for one event.
// See ReadLineUntil.
func (m *Multiplexer) ReadLine(ctx context.Context, timeout time.Duration) (Event, error) {
	return m.ReadLineUntil(ctx, deadlineFor(timeout))
}

// ReadLineUntil returns the next event from any live process, waiting until
// deadline at the latest. A zero deadline waits without limit.
//
// An EventLine carries one line with its terminator stripped. EventExit is
// returned once the process has closed its output and been reaped; its
// exit code is then pending in the registry. EventTimeout means the
// deadline passed first. Only a canceled ctx or an OS failure returns an
// error.
//
// With no live process, ReadLineUntil sleeps until the deadline, or returns
// EventTimeout at once when there is none, since nothing could ever arrive.
func (m *Multiplexer) ReadLineUntil(ctx context.Context, deadline time.Time) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if !m.reg.Live() {
		return Event{Kind: EventTimeout}, sleepUntil(ctx, deadline)
	}
	if m.poller == nil {
		p, err := process.NewPoller()
		if err != nil {
			return Event{}, err
		}
		m.poller = p
	}
	stop := context.AfterFunc(ctx, m.poller.Wake)
	defer stop()

	for {
		// Handles with a line already framed are ready without waiting, but
		// the others are still polled so they get their turn.
		handles := m.reg.Handles()
		wait := deadline
		m.fds = m.fds[:0]
		for _, h := range handles {
			m.fds = append(m.fds, h.FD())
			if h.HasLine(m.maxLine) {
				wait = time.Now()
			}
		}
		idx, woken, err := m.poller.Wait(m.fds, wait)
		if err != nil {
			return Event{}, err
		}
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		m.ready = m.ready[:0]
		k := 0
		for i, h := range handles {
			polled := k < len(idx) && idx[k] == i
			if polled {
				k++
			}
			if polled || h.HasLine(m.maxLine) {
				m.ready = append(m.ready, h)
			}
		}
		if len(m.ready) == 0 {
			if woken {
				continue
			}
			return Event{Kind: EventTimeout}, nil
		}

		h := m.next(m.ready)
		if h.HasLine(m.maxLine) {
			return m.line(h), nil
		}
		eof, err := h.Fill()
		if err != nil {
			return Event{}, err
		}
		if eof {
			return m.reap(h), nil
		}
		// Partial line: wait again. The deadline is absolute.
	}
}

// Close releases the poller. The next ReadLine creates a new one.
func (m *Multiplexer) Close() error {
	m.cursor = 0
	if m.poller == nil {
		return nil
	}
	p := m.poller
	m.poller = nil
	if err := p.Close(); err != nil {
		return fmt.Errorf("close poller: %w", err)
	}
	return nil
}

// next picks the first handle after the cursor in spawn order, wrapping
// around. candidates must be in spawn order. Returns nil when empty.
func (m *Multiplexer) next(candidates []*process.Handle) *process.Handle {
	if len(candidates) == 0 {
		return nil
	}
	for _, h := range candidates {
		if h.Seq() > m.cursor {
			return h
		}
	}
	return candidates[0]
}

// line returns the next buffered line of h and advances the cursor past it.
func (m *Multiplexer) line(h *process.Handle) Event {
	m.cursor = h.Seq()
	text, _ := h.NextLine(m.maxLine)
	m.transcripts.Write(h.Name(), text)
	return Event{Kind: EventLine, Name: h.Name(), Line: text}
}

// reap waits for h after EOF and moves it to the pending set.
func (m *Multiplexer) reap(h *process.Handle) Event {
	m.cursor = h.Seq()
	name := h.Name()
	code, dropped, err := h.Reap()
	if err != nil {
		m.log.Warn("reap failed; recording exit code -1", "process", name, "error", err)
	}
	if dropped > 0 {
		m.log.Debug("dropped unterminated output at EOF", "process", name, "bytes", dropped)
	}
	if err := m.transcripts.Close(name); err != nil {
		m.log.Warn("close transcript failed", "process", name, "error", err)
	}
	m.reg.Reaped(h)
	m.log.Debug("process exited", "process", name, "exit_code", code)
	return Event{Kind: EventExit, Name: name}
}

// noDeadline is the zero deadline: wait without limit.
var noDeadline time.Time

// deadlineFor converts a relative timeout into an absolute deadline. A
// negative timeout means none, returned as the zero time.
func deadlineFor(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// sleepUntil blocks until deadline or until ctx is canceled. A zero
// deadline returns immediately.
func sleepUntil(ctx context.Context, deadline time.Time) error {
	if deadline.IsZero() {
		return nil
	}
	d := time.Until(deadline)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
