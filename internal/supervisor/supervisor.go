// Package supervisor owns dev-server children keyed by project, relays
// their terminal output as events and detects the port they serve on.
package supervisor

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/devsup/internal/history"
	"github.com/loykin/devsup/internal/metrics"
	"github.com/loykin/devsup/internal/process"
	"github.com/loykin/devsup/internal/resolver"
	"github.com/loykin/devsup/internal/scanner"
	"github.com/loykin/devsup/internal/stats"
)

// StartResult is the response of the webapp-start request.
type StartResult struct {
	Success bool   `json:"success"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Supervisor is the process table. The zero value is not usable; call New.
type Supervisor struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	children map[int]*child
	keyLocks map[int]*sync.Mutex
}

func New(opts Options) *Supervisor {
	opts = opts.withDefaults()
	return &Supervisor{
		opts:     opts,
		log:      opts.Logger,
		children: make(map[int]*child),
		keyLocks: make(map[int]*sync.Mutex),
	}
}

// keyLock serializes Start calls for one key so that two concurrent starts
// collapse into stop-then-start.
func (s *Supervisor) keyLock(key int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}

// Start runs command in cwd for key. An empty command is resolved from the
// project's package.json. A live child for key is terminated and reaped
// before the new one is spawned. Failures are reported in the result.
func (s *Supervisor) Start(key int, cwd, command string) StartResult {
	if strings.TrimSpace(command) == "" {
		resolved, err := resolver.ResolveCommand(cwd)
		if err != nil {
			s.log.Info("no dev command", "key", key, "cwd", cwd, "err", err)
			metrics.IncStart("no_command")
			return StartResult{Error: resolver.ErrNoCommand.Error()}
		}
		command = resolved
	}

	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	old := s.children[key]
	s.mu.Unlock()
	if old != nil {
		s.log.Info("replacing dev server", "key", key, "run_id", old.runID, "pid", old.pid)
		s.terminate(old)
		<-old.gone
	}

	term, err := s.opts.Spawner(process.Spec{
		Command: command,
		WorkDir: cwd,
		Env:     s.opts.Env.Child(),
		Cols:    s.opts.Cols,
		Rows:    s.opts.Rows,
		Term:    s.opts.Term,
	})
	if err != nil {
		s.log.Error("failed to start dev server", "key", key, "cwd", cwd, "command", command, "err", err)
		metrics.IncStart("spawn_error")
		return StartResult{Error: "failed to start dev server: " + err.Error()}
	}

	c := &child{
		key:       key,
		runID:     uuid.NewString(),
		pid:       term.Pid(),
		command:   command,
		cwd:       cwd,
		startedAt: time.Now().UTC(),
		term:      term,
		scan:      scanner.New(s.opts.ScanBuffer),
		gone:      make(chan struct{}),
	}
	s.mu.Lock()
	s.children[key] = c
	running := len(s.children)
	s.mu.Unlock()

	metrics.IncStart("ok")
	metrics.SetRunning(running)
	s.record(history.EventStart, c, nil)
	s.log.Info("dev server started", "key", key, "run_id", c.runID, "pid", c.pid, "command", command, "cwd", cwd)

	go s.pump(c)
	return StartResult{Success: true, Command: command}
}

// Stop requests cooperative shutdown with Ctrl-C and force-kills the child
// if it is still present after the grace period. Unknown keys are ignored.
func (s *Supervisor) Stop(key int) {
	s.mu.Lock()
	c := s.children[key]
	s.mu.Unlock()
	if c != nil {
		s.terminate(c)
	}
}

func (s *Supervisor) terminate(c *child) {
	if err := process.Interrupt(c.term); err != nil {
		s.log.Debug("interrupt failed", "key", c.key, "err", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.children[c.key] != c || c.grace != nil || c.shutdown {
		return
	}
	c.grace = time.AfterFunc(s.opts.GracePeriod, func() { s.forceKill(c) })
}

// forceKill kills c's process group and removes the record if the child is
// not reaped within the reap timeout.
func (s *Supervisor) forceKill(c *child) {
	s.mu.Lock()
	current := s.children[c.key] == c
	s.mu.Unlock()
	if !current {
		return
	}
	s.log.Warn("grace period elapsed, force killing dev server", "key", c.key, "run_id", c.runID, "pid", c.pid)
	metrics.IncForceKill()
	if err := s.opts.Killer(c.pid); err != nil {
		s.log.Warn("force kill failed", "key", c.key, "pid", c.pid, "err", err)
	}
	select {
	case <-c.gone:
	case <-time.After(s.opts.ReapTimeout):
		s.log.Warn("dev server not reaped after kill, dropping record", "key", c.key, "pid", c.pid)
		s.finish(c, -1)
	}
}

// StopAll interrupts every child, force-kills those still alive after the
// shutdown grace and clears the table.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	all := make([]*child, 0, len(s.children))
	for _, c := range s.children {
		all = append(all, c)
		c.shutdown = true
		if c.grace != nil {
			c.grace.Stop()
		}
	}
	s.mu.Unlock()
	if len(all) == 0 {
		return
	}
	s.log.Info("stopping all dev servers", "count", len(all))
	for _, c := range all {
		if err := process.Interrupt(c.term); err != nil {
			s.log.Debug("interrupt failed", "key", c.key, "err", err)
		}
	}

	timeout := time.After(s.opts.ShutdownGrace)
wait:
	for _, c := range all {
		select {
		case <-c.gone:
		case <-timeout:
			break wait
		}
	}
	for _, c := range all {
		select {
		case <-c.gone:
			continue
		default:
		}
		s.log.Warn("shutdown grace elapsed, force killing dev server", "key", c.key, "pid", c.pid)
		metrics.IncForceKill()
		if err := s.opts.Killer(c.pid); err != nil {
			s.log.Warn("force kill failed", "key", c.key, "pid", c.pid, "err", err)
		}
		s.finish(c, -1)
	}
}

// Write forwards input to the child for key. Unknown keys are ignored.
func (s *Supervisor) Write(key int, data []byte) {
	s.mu.Lock()
	c := s.children[key]
	s.mu.Unlock()
	if c == nil || len(data) == 0 {
		return
	}
	if _, err := c.term.Write(data); err != nil {
		s.log.Debug("write to dev server failed", "key", key, "err", err)
	}
}

// Resize changes the terminal size of the child for key. Unknown keys are
// ignored.
func (s *Supervisor) Resize(key int, cols, rows uint16) {
	s.mu.Lock()
	c := s.children[key]
	s.mu.Unlock()
	if c == nil || cols == 0 || rows == 0 {
		return
	}
	if err := c.term.Resize(cols, rows); err != nil {
		s.log.Debug("resize failed", "key", key, "err", err)
	}
}

// Port returns the detected port for key.
func (s *Supervisor) Port(key int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.children[key]
	if c == nil || c.port == 0 {
		return 0, false
	}
	return c.port, true
}

// List returns the live records sorted by key.
func (s *Supervisor) List() []Info {
	s.mu.Lock()
	out := make([]Info, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, c.info())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats samples the resource usage of the child's process tree. When the
// tree cannot be read only the leader's pid is reported.
func (s *Supervisor) Stats(ctx context.Context, key int) (*stats.Snapshot, bool) {
	s.mu.Lock()
	c := s.children[key]
	s.mu.Unlock()
	if c == nil {
		return nil, false
	}
	snap, err := stats.Collect(ctx, c.pid)
	if err != nil {
		s.log.Debug("stats collection failed", "key", key, "pid", c.pid, "err", err)
		return &stats.Snapshot{PID: c.pid, Processes: 1, Timestamp: time.Now().UTC()}, true
	}
	return snap, true
}

// Len reports the number of live records.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

func (s *Supervisor) record(t history.EventType, c *child, code *int) {
	if s.opts.History == nil {
		return
	}
	s.mu.Lock()
	rec := history.Record{
		Key:       c.key,
		RunID:     c.runID,
		PID:       c.pid,
		Command:   c.command,
		Cwd:       c.cwd,
		Port:      c.port,
		StartedAt: c.startedAt,
	}
	s.mu.Unlock()
	now := time.Now().UTC()
	if code != nil {
		rec.ExitCode = code
		rec.StoppedAt = &now
	}
	s.opts.History.Record(history.Event{Type: t, OccurredAt: now, Record: rec})
}
