package process

import (
	"errors"
	"os/exec"
)

// exitCode maps the error returned by exec.Cmd.Wait to an exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
