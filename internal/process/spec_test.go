package process

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSpec_Validate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		spec      Spec
		expectErr bool
		workDir   bool // expect ErrInvalidWorkDir
	}{
		{name: "valid", spec: Spec{Command: "echo hi", WorkDir: dir}},
		{name: "empty command", spec: Spec{Command: "  ", WorkDir: dir}, expectErr: true},
		{name: "empty workdir", spec: Spec{Command: "echo"}, expectErr: true, workDir: true},
		{name: "missing workdir", spec: Spec{Command: "echo", WorkDir: filepath.Join(dir, "nope")}, expectErr: true, workDir: true},
		{name: "workdir is file", spec: Spec{Command: "echo", WorkDir: file}, expectErr: true, workDir: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.expectErr != (err != nil) {
				t.Fatalf("Validate() err=%v, expectErr=%v", err, tt.expectErr)
			}
			if tt.workDir && !errors.Is(err, ErrInvalidWorkDir) {
				t.Fatalf("expected ErrInvalidWorkDir, got %v", err)
			}
		})
	}
}

func TestSpec_WithDefaults(t *testing.T) {
	s := Spec{}.withDefaults()
	if s.Cols != 120 || s.Rows != 30 || s.Term != "xterm-256color" {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	s = Spec{Cols: 80, Rows: 24, Term: "vt100"}.withDefaults()
	if s.Cols != 80 || s.Rows != 24 || s.Term != "vt100" {
		t.Fatalf("explicit values overwritten: %+v", s)
	}
}

func TestSpec_ChildEnvReplacesTerm(t *testing.T) {
	s := Spec{Env: []string{"A=1", "TERM=dumb", "B=2"}, Term: "xterm-256color"}
	env := s.childEnv()
	var terms []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "TERM=") {
			terms = append(terms, kv)
		}
	}
	if len(terms) != 1 || terms[0] != "TERM=xterm-256color" {
		t.Fatalf("expected single TERM entry, got %v", terms)
	}
	if len(env) != 3 {
		t.Fatalf("expected 3 entries, got %v", env)
	}
}
