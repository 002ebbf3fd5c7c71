// Package stats samples resource usage of a dev server's process tree.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// maxTree bounds the number of processes visited per snapshot.
const maxTree = 256

// Snapshot is the summed usage of a process and its descendants.
type Snapshot struct {
	PID        int       `json:"pid"`
	Processes  int       `json:"processes"`
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// Collect walks the tree rooted at pid. Failures below the root are logged
// and skipped; a missing root is an error.
func Collect(ctx context.Context, pid int) (*Snapshot, error) {
	root, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("failed to create process handle: %w", err)
	}
	snap := &Snapshot{PID: pid, Timestamp: time.Now().UTC()}
	if err := add(ctx, snap, root); err != nil {
		return nil, err
	}

	seen := map[int32]bool{root.Pid: true}
	queue := []*process.Process{root}
	for len(queue) > 0 && snap.Processes < maxTree {
		p := queue[0]
		queue = queue[1:]
		kids, err := p.ChildrenWithContext(ctx)
		if err != nil {
			// ErrorNoChildren on a leaf
			continue
		}
		for _, k := range kids {
			if seen[k.Pid] || snap.Processes >= maxTree {
				continue
			}
			seen[k.Pid] = true
			if err := add(ctx, snap, k); err != nil {
				slog.Debug("skipping process in tree", "pid", k.Pid, "error", err)
				continue
			}
			queue = append(queue, k)
		}
	}
	return snap, nil
}

func add(ctx context.Context, snap *Snapshot, p *process.Process) error {
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory info: %w", err)
	}
	cpu, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		cpu = 0
	}
	threads, err := p.NumThreadsWithContext(ctx)
	if err != nil {
		threads = 0
	}
	snap.Processes++
	snap.RSSBytes += mem.RSS
	snap.CPUPercent += cpu
	snap.NumThreads += threads
	return nil
}
