package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventPort  EventType = "port"
	EventExit  EventType = "exit"
)

// Record describes one dev-server run. ExitCode and StoppedAt are set on
// exit events only.
type Record struct {
	Key       int        `json:"key"`
	RunID     string     `json:"run_id"`
	PID       int        `json:"pid"`
	Command   string     `json:"command"`
	Cwd       string     `json:"cwd"`
	Port      int        `json:"port,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Nullable column helpers shared by the SQL sinks.

// NullPort returns nil for an undetected port.
func (r Record) NullPort() any {
	if r.Port <= 0 {
		return nil
	}
	return r.Port
}

// NullExitCode returns nil when the run has not exited.
func (r Record) NullExitCode() any {
	if r.ExitCode == nil {
		return nil
	}
	return *r.ExitCode
}

// NullStoppedAt returns nil when the run has not exited.
func (r Record) NullStoppedAt() any {
	if r.StoppedAt == nil {
		return nil
	}
	return r.StoppedAt.UTC()
}
