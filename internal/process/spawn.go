package process

import (
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/giantswarm/procexpect/internal/sentinel"
)

// ErrSpawn is returned when the executable cannot be started.
const ErrSpawn = sentinel.Error("spawn process")

// ErrEmptyName is returned when Spawn is called with an empty name.
const ErrEmptyName = sentinel.Error("process name must not be empty")

// ErrEmptyArgv is returned when Spawn is called without a program.
const ErrEmptyArgv = sentinel.Error("argv must name a program")

// spawnSeq numbers handles in spawn order across all sessions.
var spawnSeq atomic.Uint64

// SpawnConfig holds per-process launch settings.
type SpawnConfig struct {
	Dir string   // Working directory; empty inherits the caller's
	Env []string // Environment; nil inherits the caller's
}

// Spawn starts argv as a child process named name. Its stdout and stderr
// are both attached to the write end of one pipe, so the kernel merges them
// in write order; the read end stays with the caller in non-blocking mode
// for use with a Poller. stdin is /dev/null.
//
// The returned handle is StateLive. The process starts running immediately,
// independent of any reads.
func Spawn(name string, argv []string, cfg SpawnConfig) (*Handle, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("spawn %s: %w", name, ErrEmptyArgv)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe for %s: %w", name, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // G204: argv is supplied by the test driver
	cmd.Dir = cfg.Dir
	cmd.Env = cfg.Env
	cmd.Stdout = w
	cmd.Stderr = w
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("%w %s: %w", ErrSpawn, name, err)
	}

	// The child holds its own copy of the write end. Closing ours means EOF
	// on r arrives once every process in the child's tree has closed it.
	_ = w.Close()

	// Fd switches r to blocking mode for the Go runtime; r is never read
	// through the os.File again, only polled and read via the raw fd.
	fd := int(r.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		_ = r.Close()
		return nil, fmt.Errorf("set output of %s non-blocking: %w", name, err)
	}

	return &Handle{
		name:  name,
		argv:  slices.Clone(argv),
		seq:   spawnSeq.Add(1),
		cmd:   cmd,
		out:   r,
		fd:    fd,
		state: StateLive,
	}, nil
}
