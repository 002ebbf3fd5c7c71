package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/devsup/internal/auth"
	"github.com/loykin/devsup/internal/config"
	"github.com/loykin/devsup/internal/env"
	"github.com/loykin/devsup/internal/history"
	"github.com/loykin/devsup/internal/history/factory"
	"github.com/loykin/devsup/internal/hub"
	"github.com/loykin/devsup/internal/logger"
	"github.com/loykin/devsup/internal/metrics"
	"github.com/loykin/devsup/internal/natsbridge"
	"github.com/loykin/devsup/internal/server"
	"github.com/loykin/devsup/internal/supervisor"
)

const shutdownTimeout = 5 * time.Second

func createServeCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config]",
		Short: "Start the devsup daemon",
		Long: `Start the daemon serving the dev server channels over HTTP, the
events websocket and, when enabled, NATS. Only one daemon may run per lock file.

Examples:
  devsup serve
  devsup serve devsup.toml
  DEVSUP_SERVER_LISTEN=127.0.0.1:9000 devsup serve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			log, logCloser, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logCloser.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log)
		},
	}
}

// runServe blocks until ctx is done, then stops every dev server and shuts
// the listeners down.
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	d, err := startDaemon(cfg, log)
	if err != nil {
		return err
	}
	log.Info("devsup listening", "addr", d.Addr(), "base_path", cfg.Server.BasePath)
	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return d.Close(sctx)
}

// daemon is one running supervisor with its transports.
type daemon struct {
	log      *slog.Logger
	lock     *flock.Flock
	sup      *supervisor.Supervisor
	hub      *hub.Hub
	httpSrv  *http.Server
	metrics  *http.Server
	tree     *metrics.TreeCollector
	recorder *history.Recorder
	bridge   *natsbridge.Bridge
}

func startDaemon(cfg *config.Config, log *slog.Logger) (_ *daemon, err error) {
	d := &daemon{log: log}
	defer func() {
		if err != nil {
			_ = d.Close(context.Background())
		}
	}()

	if d.lock, err = acquireLock(cfg.LockFile); err != nil {
		return nil, err
	}

	globals, err := cfg.GlobalEnv()
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	childEnv := env.New().WithList(globals)

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		d.tree = metrics.NewTreeCollector(cfg.Metrics.Interval)
		if err := d.tree.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	if cfg.History.Enabled {
		sinks := make([]history.Sink, 0, len(cfg.History.DSN))
		for _, dsn := range cfg.History.DSN {
			s, err := factory.NewSinkFromDSN(dsn)
			if err != nil {
				for _, open := range sinks {
					if c, ok := open.(interface{ Close() error }); ok {
						_ = c.Close()
					}
				}
				return nil, fmt.Errorf("history sink: %w", err)
			}
			sinks = append(sinks, s)
		}
		d.recorder = history.NewRecorder(log, cfg.History.Queue, sinks...)
	}

	d.hub = hub.New(hub.DefaultBuffer, log)
	sink := &supervisor.MultiSink{}
	sink.Add(d.hub)

	sc := cfg.Supervisor
	opts := supervisor.Options{
		GracePeriod:   sc.GracePeriod,
		ShutdownGrace: sc.ShutdownGrace,
		ReapTimeout:   sc.ReapTimeout,
		DrainTimeout:  sc.DrainTimeout,
		ScanBuffer:    sc.ScanBuffer,
		Cols:          sc.Cols,
		Rows:          sc.Rows,
		Term:          sc.Term,
		Env:           childEnv,
		Sink:          sink,
		Logger:        log,
	}
	if d.recorder != nil {
		opts.History = d.recorder
	}
	d.sup = supervisor.New(opts)

	if cfg.NATS.Enabled {
		d.bridge, err = natsbridge.Connect(natsbridge.Options{
			URL:    cfg.NATS.URL,
			Prefix: cfg.NATS.Prefix,
			Token:  cfg.NATS.Token,
			Logger: log,
		}, d.sup)
		if err != nil {
			return nil, err
		}
		sink.Add(d.bridge)
	}

	sameListener := cfg.Metrics.Listen == "" || cfg.Metrics.Listen == cfg.Server.Listen
	router := server.NewRouter(d.sup, d.hub, server.Options{
		BasePath: cfg.Server.BasePath,
		Token:    cfg.Server.Token,
		Metrics:  cfg.Metrics.Enabled && sameListener,
		Logger:   log,
	})
	if d.httpSrv, err = server.NewServer(cfg.Server.Listen, router.Handler(), log); err != nil {
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if cfg.Metrics.Enabled {
		if !sameListener {
			h := auth.NewMiddleware(cfg.Server.Token).HTTPAuth(metrics.Handler())
			if d.metrics, err = server.NewServer(cfg.Metrics.Listen, h, log); err != nil {
				return nil, fmt.Errorf("failed to create metrics server: %w", err)
			}
		}
		d.tree.Start(context.Background(), d.pids)
	}
	return d, nil
}

// Addr is the bound HTTP address.
func (d *daemon) Addr() string {
	if d.httpSrv == nil {
		return ""
	}
	return d.httpSrv.Addr
}

func (d *daemon) pids() map[int]int {
	out := make(map[int]int)
	for _, in := range d.sup.List() {
		out[in.Key] = in.PID
	}
	return out
}

// Close stops every child first so exit events still reach subscribers,
// then tears down transports and sinks.
func (d *daemon) Close(ctx context.Context) error {
	var errs []error
	if d.sup != nil {
		d.sup.StopAll()
	}
	if d.hub != nil {
		d.hub.Close()
	}
	for _, srv := range []*http.Server{d.httpSrv, d.metrics} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if d.tree != nil {
		d.tree.Stop()
	}
	var closers []io.Closer
	if d.bridge != nil {
		closers = append(closers, d.bridge)
	}
	if d.recorder != nil {
		closers = append(closers, d.recorder)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.lock != nil {
		if err := d.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
