package process

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Default terminal parameters for dev-server children.
const (
	DefaultCols = 120
	DefaultRows = 30
	DefaultTerm = "xterm-256color"
)

// ErrInvalidWorkDir is returned by Spawn when the working directory does not
// exist or is not a directory.
var ErrInvalidWorkDir = errors.New("invalid working directory")

// Spec describes a command to run under a pseudo-terminal.
type Spec struct {
	Command string   `json:"command"`  // shell-interpreted command line
	WorkDir string   `json:"work_dir"` // required; the project directory
	Env     []string `json:"env"`      // complete child environment in K=V form
	Cols    uint16   `json:"cols"`
	Rows    uint16   `json:"rows"`
	Term    string   `json:"term"` // exported to the child as TERM
}

// withDefaults fills zero terminal parameters.
func (s Spec) withDefaults() Spec {
	if s.Cols == 0 {
		s.Cols = DefaultCols
	}
	if s.Rows == 0 {
		s.Rows = DefaultRows
	}
	if s.Term == "" {
		s.Term = DefaultTerm
	}
	return s
}

// Validate checks the spec before any OS resources are allocated.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return errors.New("command is required")
	}
	if s.WorkDir == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidWorkDir)
	}
	info, err := os.Stat(s.WorkDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidWorkDir, s.WorkDir)
	}
	return nil
}

// childEnv returns the environment with TERM set to the spec's terminal name.
func (s Spec) childEnv() []string {
	out := make([]string, 0, len(s.Env)+1)
	for _, kv := range s.Env {
		if strings.HasPrefix(kv, "TERM=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "TERM="+s.Term)
}
