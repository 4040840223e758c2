package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// Run executes argv to completion with stdout and stderr merged, and returns
// its exit code and output lines. A non-zero exit is not an error. Failing
// to start the program returns ErrSpawn. Canceling ctx kills the process
// group; the kill is then reported through the exit code.
func Run(ctx context.Context, argv []string, cfg SpawnConfig) (int, []string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return 0, nil, fmt.Errorf("run: %w", ErrEmptyArgv)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // G204: argv is supplied by the test driver
	cmd.Dir = cfg.Dir
	cmd.Env = cfg.Env
	configureSysProcAttr(cmd)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return signalGroup(cmd.Process, unix.SIGKILL)
	}

	out, err := cmd.CombinedOutput()
	if err != nil && cmd.ProcessState == nil {
		return 0, nil, fmt.Errorf("%w %s: %w", ErrSpawn, argv[0], err)
	}
	code, err := ExitCode(err)
	if err != nil {
		return code, nil, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return code, SplitLines(string(out)), nil
}

// SplitLines splits merged output into lines with "\n" and "\r\n"
// terminators removed. A trailing terminator does not produce an empty last
// line; empty output returns nil.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
