package metrics

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/devsup/internal/stats"
)

// TreeCollector periodically samples each dev server's process tree and
// exports the result as gauges labelled by project key.
type TreeCollector struct {
	interval time.Duration

	rss       *prometheus.GaugeVec
	cpu       *prometheus.GaugeVec
	processes *prometheus.GaugeVec

	mu   sync.Mutex
	seen map[string]bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTreeCollector returns a collector sampling every interval (5s if zero).
func NewTreeCollector(interval time.Duration) *TreeCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	labels := []string{"key"}
	return &TreeCollector{
		interval: interval,
		rss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "tree_rss_bytes",
			Help:      "Resident memory of a dev server and its descendants.",
		}, labels),
		cpu: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "tree_cpu_percent",
			Help:      "CPU usage of a dev server and its descendants.",
		}, labels),
		processes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devsup",
			Subsystem: "devserver",
			Name:      "tree_processes",
			Help:      "Number of processes in a dev server's tree.",
		}, labels),
		seen:   make(map[string]bool),
		stopCh: make(chan struct{}),
	}
}

// Register registers the gauges with r.
func (c *TreeCollector) Register(r prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.rss, c.cpu, c.processes} {
		if err := r.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Start samples the pids returned by targets (key -> pid) until ctx is done
// or Stop is called.
func (c *TreeCollector) Start(ctx context.Context, targets func() map[int]int) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.Collect(ctx, targets())
			}
		}
	}()
}

// Stop stops the sampling loop.
func (c *TreeCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Collect takes one sample. Series for keys no longer present are removed.
func (c *TreeCollector) Collect(ctx context.Context, targets map[int]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := make(map[string]bool, len(targets))
	for key, pid := range targets {
		label := strconv.Itoa(key)
		snap, err := stats.Collect(ctx, pid)
		if err != nil {
			slog.Debug("Failed to collect tree metrics", "key", key, "pid", pid, "error", err)
			continue
		}
		current[label] = true
		c.rss.WithLabelValues(label).Set(float64(snap.RSSBytes))
		c.cpu.WithLabelValues(label).Set(snap.CPUPercent)
		c.processes.WithLabelValues(label).Set(float64(snap.Processes))
	}
	for label := range c.seen {
		if !current[label] {
			c.rss.DeleteLabelValues(label)
			c.cpu.DeleteLabelValues(label)
			c.processes.DeleteLabelValues(label)
		}
	}
	c.seen = current
}
