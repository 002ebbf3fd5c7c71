//go:build !windows

package process

import (
	"golang.org/x/sys/unix"
)

// ForceKill sends SIGKILL to the whole process group led by pid.
func ForceKill(pid int) error {
	if pid <= 0 {
		return nil
	}
	return unix.Kill(-pid, unix.SIGKILL)
}
