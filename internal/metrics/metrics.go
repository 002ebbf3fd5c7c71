package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	starts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "starts_total",
			Help:      "Number of start requests by result (ok, no_command, spawn_error).",
		}, []string{"result"},
	)
	exits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "exits_total",
			Help:      "Number of dev server exits delivered.",
		},
	)
	forceKills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "force_kills_total",
			Help:      "Number of dev servers force killed after a grace period.",
		},
	)
	portsDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "ports_detected_total",
			Help:      "Number of serving ports detected from output.",
		},
	)
	outputBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "output_bytes_total",
			Help:      "Bytes of terminal output relayed.",
		},
	)
	running = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "running",
			Help:      "Current number of supervised dev servers.",
		},
	)
	portDetect = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "port_detect_seconds",
			Help:      "Time from start to port detection.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{starts, exits, forceKills, portsDetected, outputBytes, running, portDetect}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(result string) {
	if regOK.Load() {
		starts.WithLabelValues(result).Inc()
	}
}

func IncExit() {
	if regOK.Load() {
		exits.Inc()
	}
}

func IncForceKill() {
	if regOK.Load() {
		forceKills.Inc()
	}
}

func IncPortDetected() {
	if regOK.Load() {
		portsDetected.Inc()
	}
}

func AddOutputBytes(n int) {
	if regOK.Load() && n > 0 {
		outputBytes.Add(float64(n))
	}
}

func SetRunning(n int) {
	if regOK.Load() {
		running.Set(float64(n))
	}
}

func ObservePortDetect(seconds float64) {
	if regOK.Load() {
		portDetect.Observe(seconds)
	}
}
