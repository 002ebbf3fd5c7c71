package supervisor

import (
	"log/slog"
	"time"

	"github.com/loykin/devsup/internal/env"
	"github.com/loykin/devsup/internal/history"
	"github.com/loykin/devsup/internal/process"
	"github.com/loykin/devsup/internal/scanner"
)

const (
	DefaultGracePeriod   = 3 * time.Second
	DefaultShutdownGrace = 2 * time.Second
	DefaultReapTimeout   = time.Second
	DefaultDrainTimeout  = 200 * time.Millisecond
)

// Recorder accepts run history events. It must not block.
type Recorder interface {
	Record(history.Event)
}

// Options configures a Supervisor. Zero values select defaults.
type Options struct {
	// GracePeriod is the wait between Ctrl-C and force kill on Stop.
	GracePeriod time.Duration
	// ShutdownGrace is the same wait for StopAll.
	ShutdownGrace time.Duration
	// ReapTimeout bounds the wait for a force-killed child to be reaped
	// before its record is dropped anyway.
	ReapTimeout time.Duration
	// DrainTimeout bounds reading leftover output after the child exits.
	DrainTimeout time.Duration
	ScanBuffer   int
	Cols, Rows   uint16
	Term         string

	Env     *env.Env
	Spawner process.Spawner
	Killer  func(pid int) error
	Sink    EventSink
	History Recorder
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = DefaultShutdownGrace
	}
	if o.ReapTimeout <= 0 {
		o.ReapTimeout = DefaultReapTimeout
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.ScanBuffer <= 0 {
		o.ScanBuffer = scanner.DefaultLimit
	}
	if o.Cols == 0 {
		o.Cols = process.DefaultCols
	}
	if o.Rows == 0 {
		o.Rows = process.DefaultRows
	}
	if o.Term == "" {
		o.Term = process.DefaultTerm
	}
	if o.Env == nil {
		o.Env = env.New()
	}
	if o.Spawner == nil {
		o.Spawner = process.Spawn
	}
	if o.Killer == nil {
		o.Killer = process.ForceKill
	}
	if o.Sink == nil {
		o.Sink = discard{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
