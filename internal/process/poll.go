package process

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Poller waits for readiness across many output descriptors in one blocking
// call. A private wake pipe lets another goroutine (typically a
// context.AfterFunc) interrupt a wait in progress.
type Poller struct {
	wakeR  *os.File
	wakeW  *os.File
	wakeRD int
	pfds   []unix.PollFd
}

// NewPoller creates a Poller and its wake pipe. Callers must Close it.
func NewPoller() (*Poller, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create wake pipe: %w", err)
	}
	p := &Poller{wakeR: r, wakeW: w, wakeRD: int(r.Fd())}
	for _, fd := range []int{p.wakeRD, int(w.Fd())} {
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set wake pipe non-blocking: %w", err)
		}
	}
	return p, nil
}

// Wait blocks until at least one of fds is readable (data, EOF, or error),
// Wake is called, or the deadline passes. A zero deadline waits without
// limit. It returns the indexes into fds that are ready and whether the wait
// was interrupted by Wake. A timeout returns no indexes and woken == false.
//
// The wait is rounded up to whole milliseconds, so a timeout is never
// reported before the deadline.
func (p *Poller) Wait(fds []int, deadline time.Time) (ready []int, woken bool, err error) {
	p.pfds = p.pfds[:0]
	for _, fd := range fds {
		p.pfds = append(p.pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}) //nolint:gosec // G115: fds are small
	}
	p.pfds = append(p.pfds, unix.PollFd{Fd: int32(p.wakeRD), Events: unix.POLLIN}) //nolint:gosec // G115: fds are small

	for {
		timeout := -1
		if !deadline.IsZero() {
			timeout = pollTimeout(time.Until(deadline))
		}
		n, err := unix.Poll(p.pfds, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("poll %d descriptors: %w", len(fds), err)
		}
		if n == 0 {
			return nil, false, nil
		}
		break
	}

	const readable = unix.POLLIN | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL
	for i := range fds {
		if p.pfds[i].Revents&readable != 0 {
			ready = append(ready, i)
		}
	}
	if p.pfds[len(fds)].Revents != 0 {
		p.drainWake()
		woken = true
	}
	return ready, woken, nil
}

// Wake interrupts a concurrent or the next Wait. It is safe to call from any
// goroutine, including after Close, which turns it into a no-op.
func (p *Poller) Wake() {
	// Writing through the os.File (not the raw fd) keeps a late Wake from
	// hitting a reused descriptor. A full pipe already guarantees a wakeup.
	_, _ = p.wakeW.Write([]byte{1})
}

// Close releases the wake pipe.
func (p *Poller) Close() error {
	return errors.Join(p.wakeR.Close(), p.wakeW.Close())
}

// drainWake empties the wake pipe so the next Wait blocks again.
func (p *Poller) drainWake() {
	var b [64]byte
	for {
		n, err := unix.Read(p.wakeRD, b[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// pollTimeout converts a remaining duration into a poll(2) timeout in
// milliseconds, rounding up and clamping to the int32 range.
func pollTimeout(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	if d >= math.MaxInt32*time.Millisecond {
		return math.MaxInt32
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
