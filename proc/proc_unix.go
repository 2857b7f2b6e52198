//go:build unix

package proc

import (
	"os/exec"
	"syscall"
)

// killGroupOnCancel starts c in its own process group and kills the
// whole group on cancellation, so the browsers and replay servers the
// benchmark runner spawns die with it.
func killGroupOnCancel(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
