//go:build windows

package process

import (
	"context"
	"sync"

	"github.com/UserExistsError/conpty"
)

type windowsTerminal struct {
	cpty      *conpty.ConPty
	closeOnce sync.Once
	closeErr  error
}

// startTerminal runs the command through cmd.exe inside a ConPTY
// pseudo-console. ConPTY creates the process itself.
func startTerminal(spec Spec) (Terminal, error) {
	opts := []conpty.ConPtyOption{
		conpty.ConPtyDimensions(int(spec.Cols), int(spec.Rows)),
		conpty.ConPtyWorkDir(spec.WorkDir),
		conpty.ConPtyEnv(spec.childEnv()),
	}
	cpty, err := conpty.Start(shellCommandLine(spec.Command), opts...)
	if err != nil {
		return nil, err
	}
	return &windowsTerminal{cpty: cpty}, nil
}

func (t *windowsTerminal) Read(p []byte) (int, error)  { return t.cpty.Read(p) }
func (t *windowsTerminal) Write(p []byte) (int, error) { return t.cpty.Write(p) }

func (t *windowsTerminal) Close() error {
	t.closeOnce.Do(func() { t.closeErr = t.cpty.Close() })
	return t.closeErr
}

func (t *windowsTerminal) Pid() int { return int(t.cpty.Pid()) }

func (t *windowsTerminal) Resize(cols, rows uint16) error {
	return t.cpty.Resize(int(cols), int(rows))
}

func (t *windowsTerminal) Wait() int {
	code, err := t.cpty.Wait(context.Background())
	if err != nil {
		return -1
	}
	return int(code)
}
