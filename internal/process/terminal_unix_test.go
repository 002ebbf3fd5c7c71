//go:build !windows

package process

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// processExists reports whether pid is still alive.
func processExists(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// readAll drains t until the pty reports an error (EIO after the child exits).
func readAll(t *testing.T, term Terminal, timeout time.Duration) string {
	t.Helper()
	done := make(chan []byte, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, term)
		done <- buf.Bytes()
	}()
	select {
	case b := <-done:
		return string(b)
	case <-time.After(timeout):
		_ = term.Close()
		t.Fatalf("timed out reading terminal output")
		return ""
	}
}

func spawnT(t *testing.T, command string) Terminal {
	t.Helper()
	term, err := Spawn(Spec{Command: command, WorkDir: t.TempDir(), Env: os.Environ()})
	if err != nil {
		t.Fatalf("Spawn(%q): %v", command, err)
	}
	t.Cleanup(func() { _ = term.Close() })
	return term
}

func TestSpawn_OutputAndExitCode(t *testing.T) {
	term := spawnT(t, "printf 'hello pty'; exit 3")
	out := readAll(t, term, 5*time.Second)
	if !strings.Contains(out, "hello pty") {
		t.Fatalf("output %q does not contain greeting", out)
	}
	if code := term.Wait(); code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
}

func TestSpawn_ShellOperators(t *testing.T) {
	term := spawnT(t, "echo one | tr a-z A-Z && echo two")
	out := readAll(t, term, 5*time.Second)
	if !strings.Contains(out, "ONE") || !strings.Contains(out, "two") {
		t.Fatalf("shell operators not interpreted: %q", out)
	}
	if code := term.Wait(); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
}

func TestSpawn_TermAndEnv(t *testing.T) {
	term, err := Spawn(Spec{
		Command: `printf '%s|%s' "$TERM" "$DEVSUP_TEST"`,
		WorkDir: t.TempDir(),
		Env:     append(os.Environ(), "DEVSUP_TEST=yes"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = term.Close() }()
	out := readAll(t, term, 5*time.Second)
	if !strings.Contains(out, "xterm-256color|yes") {
		t.Fatalf("unexpected env output %q", out)
	}
	_ = term.Wait()
}

func TestSpawn_WorkDir(t *testing.T) {
	dir := t.TempDir()
	term, err := Spawn(Spec{Command: "pwd", WorkDir: dir, Env: os.Environ()})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = term.Close() }()
	out := readAll(t, term, 5*time.Second)
	// macOS tempdirs resolve through /private
	if !strings.Contains(out, strings.TrimPrefix(dir, "/private")) {
		t.Fatalf("pwd output %q does not contain %q", out, dir)
	}
	_ = term.Wait()
}

func TestSpawn_InvalidWorkDir(t *testing.T) {
	_, err := Spawn(Spec{Command: "true", WorkDir: "/definitely/not/here"})
	if !errors.Is(err, ErrInvalidWorkDir) {
		t.Fatalf("expected ErrInvalidWorkDir, got %v", err)
	}
}

func TestInterrupt_StopsCooperativeChild(t *testing.T) {
	term := spawnT(t, "sleep 30")
	// give bash a moment to exec sleep
	time.Sleep(200 * time.Millisecond)
	if err := Interrupt(term); err != nil {
		t.Fatalf("Interrupt: %v", err)
	}
	go func() { _, _ = io.Copy(io.Discard, term) }()
	waited := make(chan int, 1)
	go func() { waited <- term.Wait() }()
	select {
	case code := <-waited:
		if code == 0 {
			t.Fatalf("expected non-zero exit after Ctrl-C, got 0")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("child did not exit after Ctrl-C")
	}
}

func TestForceKill_ProcessGroup(t *testing.T) {
	term := spawnT(t, "trap '' INT; sleep 30 & sleep 30; wait")
	go func() { _, _ = io.Copy(io.Discard, term) }()
	time.Sleep(200 * time.Millisecond)
	pid := term.Pid()
	if !processExists(pid) {
		t.Fatalf("leader %d not running", pid)
	}
	if err := ForceKill(pid); err != nil {
		t.Fatalf("ForceKill: %v", err)
	}
	waited := make(chan int, 1)
	go func() { waited <- term.Wait() }()
	select {
	case code := <-waited:
		if code != -1 {
			t.Fatalf("expected -1 for signalled child, got %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("child survived SIGKILL")
	}
}

func TestForceKill_InvalidPID(t *testing.T) {
	if err := ForceKill(0); err != nil {
		t.Fatalf("ForceKill(0) = %v", err)
	}
}

func TestResize(t *testing.T) {
	term := spawnT(t, "sleep 1")
	go func() { _, _ = io.Copy(io.Discard, term) }()
	if err := term.Resize(200, 50); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	_ = ForceKill(term.Pid())
	_ = term.Wait()
}
