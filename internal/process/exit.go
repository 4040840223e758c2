package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// ExitCode converts the result of cmd.Wait into the code reported to
// callers: the exit status for a normal exit, or the negated signal number
// when the process was terminated by a signal (SIGKILL reports -9).
//
// Errors that do not describe a process exit (for example a second Wait) are
// returned alongside code -1, which is otherwise indistinguishable from
// SIGHUP; callers log the error.
func ExitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return -int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Signaled reports whether code, as produced by ExitCode, describes a
// termination by signal, and which signal it was.
func Signaled(code int) (syscall.Signal, bool) {
	if code < 0 {
		return syscall.Signal(-code), true
	}
	return 0, false
}
