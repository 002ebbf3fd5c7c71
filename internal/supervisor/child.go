package supervisor

import (
	"sync"
	"time"

	"github.com/loykin/devsup/internal/process"
	"github.com/loykin/devsup/internal/scanner"
)

// child is the process table record for one project key.
// Fields below the first group are guarded by Supervisor.mu.
type child struct {
	key       int
	runID     string
	pid       int
	command   string
	cwd       string
	startedAt time.Time
	term      process.Terminal

	port  int              // frozen once non-zero
	scan  *scanner.Scanner // nil once a port is detected
	grace *time.Timer      // armed by Stop
	// set by StopAll, which escalates on its own schedule
	shutdown bool

	// emitMu orders data, port and exit events for this record.
	emitMu sync.Mutex
	exited bool

	exitOnce sync.Once
	gone     chan struct{} // closed after the record is removed
}

// Info is a read-only view of a live record.
type Info struct {
	Key       int       `json:"key"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	Port      *int      `json:"port"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
}

func (c *child) info() Info {
	in := Info{
		Key:       c.key,
		PID:       c.pid,
		Command:   c.command,
		Cwd:       c.cwd,
		RunID:     c.runID,
		StartedAt: c.startedAt,
	}
	if c.port > 0 {
		p := c.port
		in.Port = &p
	}
	return in
}
