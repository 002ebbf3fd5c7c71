//go:build !windows

package process

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

type unixTerminal struct {
	cmd       *exec.Cmd
	ptmx      *os.File
	closeOnce sync.Once
	closeErr  error
}

// startTerminal runs the command through bash on a new pty.
// pty.StartWithSize sets Setsid and Setctty, so the child is a session
// leader and its pid doubles as the process group id.
func startTerminal(spec Spec) (Terminal, error) {
	args := shellArgs(spec.Command)
	// #nosec G204
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Env = spec.childEnv()
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: spec.Cols, Rows: spec.Rows})
	if err != nil {
		return nil, err
	}
	return &unixTerminal{cmd: cmd, ptmx: ptmx}, nil
}

func (t *unixTerminal) Read(p []byte) (int, error)  { return t.ptmx.Read(p) }
func (t *unixTerminal) Write(p []byte) (int, error) { return t.ptmx.Write(p) }

func (t *unixTerminal) Close() error {
	t.closeOnce.Do(func() { t.closeErr = t.ptmx.Close() })
	return t.closeErr
}

func (t *unixTerminal) Pid() int { return t.cmd.Process.Pid }

func (t *unixTerminal) Resize(cols, rows uint16) error {
	return pty.Setsize(t.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func (t *unixTerminal) Wait() int { return exitCode(t.cmd.Wait()) }
