package process

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/giantswarm/procexpect/internal/sentinel"
)

// ErrNotLive is returned when signalling or reaping a handle whose process
// has already been reaped.
const ErrNotLive = sentinel.Error("process is not live")

// readChunkSize is the number of bytes requested from the output pipe per
// Fill. psql result sets run to megabytes, so a large chunk keeps the number
// of poll/read round trips low.
const readChunkSize = 64 * 1024

// State is the exit-code state of a Handle.
//
// A handle only moves forward: Live → Reaped → Consumed. The exit code is
// readable exactly once, on the Reaped → Consumed transition.
type State int

const (
	// StateLive means the process output has not reached EOF or the
	// process has not been waited for yet.
	StateLive State = iota

	// StateReaped means the process was waited for and its exit code is
	// pending, not yet handed to a caller.
	StateReaped

	// StateConsumed means the exit code was handed out (or discarded by
	// Finish) and can never be read again.
	StateConsumed
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateReaped:
		return "reaped"
	case StateConsumed:
		return "consumed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handle is one spawned child process: its name, argument vector, the read
// end of its merged stdout/stderr pipe, and its exit state.
type Handle struct {
	name  string
	argv  []string
	seq   uint64
	cmd   *exec.Cmd
	out   *os.File // read end of the merged output pipe; nil once closed
	fd    int      // raw descriptor of out, polled and read directly
	buf   []byte   // bytes read but not yet framed into lines
	chunk []byte
	state State
	code  int
}

// Name returns the name the process was spawned under.
func (h *Handle) Name() string { return h.name }

// Argv returns a copy of the argument vector.
func (h *Handle) Argv() []string { return slices.Clone(h.argv) }

// Seq returns the spawn sequence number. Handles spawned later have larger
// sequence numbers; the multiplexer uses it for round-robin order.
func (h *Handle) Seq() uint64 { return h.seq }

// PID returns the operating system process id.
func (h *Handle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// State returns the exit state.
func (h *Handle) State() State { return h.state }

// FD returns the output descriptor to poll, or -1 once output is closed.
func (h *Handle) FD() int {
	if h.out == nil {
		return -1
	}
	return h.fd
}

// HasLine reports whether NextLine would return a line without reading.
func (h *Handle) HasLine(maxLine int) bool {
	return bytes.IndexByte(h.buf, '\n') >= 0 || (maxLine > 0 && len(h.buf) >= maxLine)
}

// NextLine removes and returns the next complete line from the buffer with
// its "\n" or "\r\n" terminator stripped. A run of maxLine bytes without a
// terminator is returned as a line of its own so a process that never writes
// a newline cannot grow the buffer without bound. A line of exactly maxLine
// bytes ending in "\r\n" is still one line.
func (h *Handle) NextLine(maxLine int) (string, bool) {
	i := bytes.IndexByte(h.buf, '\n')
	crlfAtLimit := maxLine > 0 && i == maxLine+1 && h.buf[maxLine] == '\r'
	if maxLine > 0 && (i < 0 || i > maxLine) && !crlfAtLimit && len(h.buf) >= maxLine {
		line := string(h.buf[:maxLine])
		h.buf = h.buf[maxLine:]
		return line, true
	}
	if i < 0 {
		return "", false
	}
	line := h.buf[:i]
	line = bytes.TrimSuffix(line, []byte{'\r'})
	s := string(line)
	h.buf = h.buf[i+1:]
	if len(h.buf) == 0 {
		h.buf = nil
	}
	return s, true
}

// Fill performs one non-blocking read from the output pipe into the line
// buffer. It reports eof once every writer has closed the pipe. A read that
// would block is not an error; it returns (false, nil).
func (h *Handle) Fill() (bool, error) {
	if h.out == nil {
		return true, nil
	}
	if h.chunk == nil {
		h.chunk = make([]byte, readChunkSize)
	}
	for {
		n, err := unix.Read(h.fd, h.chunk)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("read output of %s: %w", h.name, err)
		case n == 0:
			return true, nil
		}
		h.buf = append(h.buf, h.chunk[:n]...)
		return false, nil
	}
}

// Signal sends sig to the process group of the child. It does not wait for
// the process to exit; termination is observed later as EOF on the output.
func (h *Handle) Signal(sig syscall.Signal) error {
	if h.state != StateLive {
		return fmt.Errorf("signal %s: %w", h.name, ErrNotLive)
	}
	pid := h.PID()
	if pid <= 0 {
		return fmt.Errorf("signal %s: %w", h.name, ErrNotLive)
	}
	err := signalGroup(h.cmd.Process, sig)
	if err != nil {
		return fmt.Errorf("signal %s (pid %d) with %v: %w", h.name, pid, sig, err)
	}
	return nil
}

// Reap closes the output pipe, blocks until the process exits, and moves the
// handle to StateReaped. It returns the exit code and the number of buffered
// bytes that were dropped because they never formed a terminated line.
//
// A Wait error that does not describe a process exit is returned alongside
// code -1; the handle is still reaped.
func (h *Handle) Reap() (code, dropped int, err error) {
	if h.state != StateLive {
		return 0, 0, fmt.Errorf("reap %s: %w", h.name, ErrNotLive)
	}
	dropped = len(h.buf)
	h.buf = nil
	h.closeOutput()
	code, err = ExitCode(h.cmd.Wait())
	h.state = StateReaped
	h.code = code
	if err != nil {
		err = fmt.Errorf("wait %s: %w", h.name, err)
	}
	return code, dropped, err
}

// Consume hands out the pending exit code and moves the handle to
// StateConsumed. Every call after the first returns ok == false.
func (h *Handle) Consume() (code int, ok bool) {
	if h.state != StateReaped {
		return 0, false
	}
	h.state = StateConsumed
	return h.code, true
}

// Discard closes the output pipe and waits at most timeout for an already
// signalled process to exit, without recording its exit code. It is used by
// Finish to avoid leaking zombies after a forced kill.
func (h *Handle) Discard(timeout time.Duration) error {
	h.buf = nil
	h.closeOutput()
	if h.state != StateLive {
		h.state = StateConsumed
		return nil
	}
	h.state = StateConsumed

	done := make(chan error, 1)
	go func() {
		done <- h.cmd.Wait()
	}()
	ok, waitErr := drainDone(done, timeout)
	if !ok {
		return fmt.Errorf("%s: timed out waiting for process to exit after kill", h.name)
	}
	if _, err := ExitCode(waitErr); err != nil {
		return fmt.Errorf("%s: %w", h.name, err)
	}
	return nil
}

// signalGroup sends sig to the process group led by p, falling back to p
// alone when the group does not exist (setpgid raced with exec).
func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = p.Signal(sig)
	}
	return err
}

// closeOutput closes the read end of the output pipe once.
func (h *Handle) closeOutput() {
	if h.out != nil {
		_ = h.out.Close()
		h.out = nil
		h.fd = -1
	}
}

// drainDone reads from the done channel with the given timeout as a hard
// upper bound. Returns true and the cmd.Wait error if the channel delivered
// in time, or false and a nil error if the timeout elapsed.
func drainDone(done <-chan error, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}
