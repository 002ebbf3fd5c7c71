// Package devsup is the embeddable facade of the dev server supervisor.
package devsup

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/devsup/internal/config"
	"github.com/loykin/devsup/internal/env"
	"github.com/loykin/devsup/internal/history"
	"github.com/loykin/devsup/internal/history/factory"
	"github.com/loykin/devsup/internal/hub"
	"github.com/loykin/devsup/internal/metrics"
	"github.com/loykin/devsup/internal/resolver"
	iapi "github.com/loykin/devsup/internal/server"
	"github.com/loykin/devsup/internal/stats"
	"github.com/loykin/devsup/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Event = supervisor.Event

type EventSink = supervisor.EventSink

type SinkFunc = supervisor.SinkFunc

type MultiSink = supervisor.MultiSink

type Options = supervisor.Options

type StartResult = supervisor.StartResult

type Info = supervisor.Info

type Stats = stats.Snapshot

type Framework = resolver.Framework

type Config = cfg.Config

type HistorySink = history.Sink

type HistoryRecorder = history.Recorder

type Hub = hub.Hub

type RouterOptions = iapi.Options

// Event channel names.
const (
	ChannelData         = supervisor.ChannelData
	ChannelExit         = supervisor.ChannelExit
	ChannelPortDetected = supervisor.ChannelPortDetected
)

// ErrNoCommand is returned when no dev command is configured or resolvable.
var ErrNoCommand = resolver.ErrNoCommand

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

func New(opts Options) *Supervisor { return &Supervisor{inner: supervisor.New(opts)} }

func (s *Supervisor) Start(key int, cwd, command string) StartResult {
	return s.inner.Start(key, cwd, command)
}
func (s *Supervisor) Stop(key int)                      { s.inner.Stop(key) }
func (s *Supervisor) StopAll()                          { s.inner.StopAll() }
func (s *Supervisor) Write(key int, data []byte)        { s.inner.Write(key, data) }
func (s *Supervisor) Resize(key int, cols, rows uint16) { s.inner.Resize(key, cols, rows) }
func (s *Supervisor) Port(key int) (int, bool)          { return s.inner.Port(key) }
func (s *Supervisor) List() []Info                      { return s.inner.List() }
func (s *Supervisor) Len() int                          { return s.inner.Len() }
func (s *Supervisor) Stats(ctx context.Context, key int) (*Stats, bool) {
	return s.inner.Stats(ctx, key)
}

// NewEnv returns a child environment with kvs ("K=V") layered over the
// process environment.
func NewEnv(kvs []string) *env.Env { return env.New().WithList(kvs) }

// NewHub returns an event fan-out for transport subscribers; pass it as
// (part of) Options.Sink.
func NewHub(buffer int, log *slog.Logger) *Hub { return hub.New(buffer, log) }

// NewRouter returns the HTTP and websocket handler for s.
func NewRouter(s *Supervisor, h *Hub, opts RouterOptions) http.Handler {
	return iapi.NewRouter(s, h, opts).Handler()
}

// NewHTTPServer binds addr and serves h in the background.
func NewHTTPServer(addr string, h http.Handler, log *slog.Logger) (*http.Server, error) {
	if log == nil {
		log = slog.Default()
	}
	return iapi.NewServer(addr, h, log)
}

// DetectFramework returns nil when dir has no readable package.json.
func DetectFramework(dir string) *Framework { return resolver.DetectFramework(dir) }

// ResolveCommand returns the dev command for the project in dir.
func ResolveCommand(dir string) (string, error) { return resolver.ResolveCommand(dir) }

// LoadConfig reads a config file (toml, yaml or json) plus DEVSUP_* overrides.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// Metrics helpers

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }

func MetricsHandler() http.Handler { return metrics.Handler() }

// History helpers

func NewHistorySinkFromDSN(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewHistoryRecorder buffers up to queue events and drops when full.
func NewHistoryRecorder(log *slog.Logger, queue int, sinks ...HistorySink) *HistoryRecorder {
	return history.NewRecorder(log, queue, sinks...)
}
