package process

import (
	"fmt"
	"io"
)

// CtrlC is written to a terminal to request cooperative shutdown.
const CtrlC byte = 0x03

// Terminal is a child process attached to a pseudo-terminal.
// Read returns the merged output stream; Write feeds the child's input.
type Terminal interface {
	io.ReadWriteCloser
	// Pid is the OS process id of the terminal's leader process.
	Pid() int
	Resize(cols, rows uint16) error
	// Wait blocks until the leader exits and returns its exit status.
	// A child terminated by a signal reports -1.
	Wait() int
}

// Spawner starts a Terminal for a Spec. Spawn is the production implementation.
type Spawner func(Spec) (Terminal, error)

// Spawn validates spec and starts its command under the platform shell in a
// new pseudo-terminal. The child leads its own process group.
func Spawn(spec Spec) (Terminal, error) {
	spec = spec.withDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	t, err := startTerminal(spec)
	if err != nil {
		return nil, fmt.Errorf("spawn %q: %w", spec.Command, err)
	}
	return t, nil
}

// Interrupt sends Ctrl-C through the terminal.
func Interrupt(t Terminal) error {
	_, err := t.Write([]byte{CtrlC})
	return err
}
