package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultQueue       = 256
	defaultSendTimeout = 5 * time.Second
)

// Recorder delivers events to sinks from a single background goroutine.
// Record never blocks; events are dropped when the queue is full.
type Recorder struct {
	sinks   []Sink
	queue   chan Event
	timeout time.Duration
	log     *slog.Logger

	done chan struct{}

	// mu guards closed and the send on queue against close(queue).
	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewRecorder starts a recorder for sinks. queue <= 0 selects a default size.
func NewRecorder(log *slog.Logger, queue int, sinks ...Sink) *Recorder {
	if queue <= 0 {
		queue = defaultQueue
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		sinks:   append([]Sink(nil), sinks...),
		queue:   make(chan Event, queue),
		timeout: defaultSendTimeout,
		log:     log,
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues e. Events recorded after Close are discarded.
func (r *Recorder) Record(e Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	select {
	case r.queue <- e:
		r.mu.Unlock()
	default:
		r.dropped++
		n := r.dropped
		r.mu.Unlock()
		r.log.Warn("history queue full, dropping event", "type", e.Type, "run_id", e.Record.RunID, "dropped", n)
	}
}

// Dropped reports how many events were discarded.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting events, flushes the queue and closes sinks that
// implement io.Closer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	for _, s := range r.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				r.log.Warn("history sink close failed", "error", err)
			}
		}
	}
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			if err := s.Send(ctx, e); err != nil {
				r.log.Warn("history sink send failed", "type", e.Type, "run_id", e.Record.RunID, "error", err)
			}
			cancel()
		}
	}
}
