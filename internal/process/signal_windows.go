//go:build windows

package process

import (
	"os/exec"
	"strconv"
)

// ForceKill terminates pid and every descendant with taskkill.
func ForceKill(pid int) error {
	if pid <= 0 {
		// On Windows, invalid PIDs are common during rapid process termination
		return nil
	}
	// #nosec G204
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
