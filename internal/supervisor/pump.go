package supervisor

import (
	"time"

	"github.com/loykin/devsup/internal/history"
	"github.com/loykin/devsup/internal/metrics"
)

const readChunk = 32 * 1024

// pump relays c's output until the child exits, then finishes the record.
func (s *Supervisor) pump(c *child) {
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.read(c)
	}()

	code := c.term.Wait()

	// Output written just before exit may still be buffered in the pty.
	select {
	case <-readerDone:
	case <-time.After(s.opts.DrainTimeout):
		_ = c.term.Close()
		select {
		case <-readerDone:
		case <-time.After(s.opts.DrainTimeout):
			s.log.Debug("reader still blocked after close", "key", c.key, "pid", c.pid)
		}
	}
	s.finish(c, code)
}

func (s *Supervisor) read(c *child) {
	buf := make([]byte, readChunk)
	for {
		n, err := c.term.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.deliver(c, chunk)
		}
		if err != nil {
			return
		}
	}
}

// deliver emits a data event and feeds the scanner. A data event always
// precedes any port event derived from it.
func (s *Supervisor) deliver(c *child, chunk []byte) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.exited {
		return
	}
	s.opts.Sink.Emit(dataEvent(c.key, chunk))
	metrics.AddOutputBytes(len(chunk))

	s.mu.Lock()
	sc := c.scan
	s.mu.Unlock()
	if sc == nil {
		return
	}
	port, ok := sc.Feed(chunk)
	if !ok {
		return
	}
	s.mu.Lock()
	c.port = port
	c.scan = nil
	s.mu.Unlock()

	s.opts.Sink.Emit(portEvent(c.key, port))
	metrics.IncPortDetected()
	metrics.ObservePortDetect(time.Since(c.startedAt).Seconds())
	s.record(history.EventPort, c, nil)
	s.log.Info("dev server port detected", "key", c.key, "run_id", c.runID, "port", port)
}

// finish removes c from the table and emits its exit event. It runs once per
// record; later calls are no-ops.
func (s *Supervisor) finish(c *child, code int) {
	c.exitOnce.Do(func() {
		c.emitMu.Lock()
		c.exited = true

		s.mu.Lock()
		if s.children[c.key] == c {
			delete(s.children, c.key)
		}
		if c.grace != nil {
			c.grace.Stop()
		}
		c.scan = nil
		running := len(s.children)
		s.mu.Unlock()

		s.opts.Sink.Emit(exitEvent(c.key, code))
		c.emitMu.Unlock()

		_ = c.term.Close()
		metrics.IncExit()
		metrics.SetRunning(running)
		s.record(history.EventExit, c, &code)
		s.log.Info("dev server exited", "key", c.key, "run_id", c.runID, "pid", c.pid, "code", code)
		close(c.gone)
	})
}
