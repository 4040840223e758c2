//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so Kill
// reaches the daemons it forks, and sets Pdeathsig so children are killed
// when the driver dies abruptly instead of outliving it.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
