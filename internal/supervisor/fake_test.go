package supervisor

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/loykin/devsup/internal/process"
)

// fakeTerm is an in-memory Terminal. Output written with emit is read by the
// pump; exit ends the stream and releases Wait.
type fakeTerm struct {
	pid  int
	spec process.Spec

	outR *io.PipeReader
	outW *io.PipeWriter

	mu      sync.Mutex
	input   bytes.Buffer
	resizes [][2]uint16

	ignoreCtrlC bool
	exitCh      chan int
	exitOnce    sync.Once
}

func newFakeTerm(pid int, spec process.Spec) *fakeTerm {
	r, w := io.Pipe()
	return &fakeTerm{pid: pid, spec: spec, outR: r, outW: w, exitCh: make(chan int, 1)}
}

func (f *fakeTerm) Read(p []byte) (int, error) { return f.outR.Read(p) }

func (f *fakeTerm) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.input.Write(p)
	ignore := f.ignoreCtrlC
	f.mu.Unlock()
	if !ignore && bytes.IndexByte(p, process.CtrlC) >= 0 {
		f.exit(130)
	}
	return len(p), nil
}

func (f *fakeTerm) Close() error { return f.outR.Close() }
func (f *fakeTerm) Pid() int     { return f.pid }

func (f *fakeTerm) Resize(cols, rows uint16) error {
	f.mu.Lock()
	f.resizes = append(f.resizes, [2]uint16{cols, rows})
	f.mu.Unlock()
	return nil
}

func (f *fakeTerm) Wait() int { return <-f.exitCh }

func (f *fakeTerm) emit(t *testing.T, s string) {
	t.Helper()
	if _, err := f.outW.Write([]byte(s)); err != nil {
		t.Fatalf("emit: %v", err)
	}
}

func (f *fakeTerm) exit(code int) {
	f.exitOnce.Do(func() {
		_ = f.outW.Close()
		f.exitCh <- code
	})
}

func (f *fakeTerm) inputString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.String()
}

// fakeOS hands out fakeTerms and plays the kernel for force kills.
type fakeOS struct {
	mu         sync.Mutex
	nextPID    int
	terms      []*fakeTerm
	byPID      map[int]*fakeTerm
	killed     []int
	unkillable bool
	ignoreInt  bool
	spawnErr   error
	onSpawn    func(*fakeTerm)
}

func newFakeOS() *fakeOS {
	return &fakeOS{nextPID: 1000, byPID: make(map[int]*fakeTerm)}
}

func (o *fakeOS) spawn(spec process.Spec) (process.Terminal, error) {
	o.mu.Lock()
	if o.spawnErr != nil {
		err := o.spawnErr
		o.mu.Unlock()
		return nil, err
	}
	o.nextPID++
	ft := newFakeTerm(o.nextPID, spec)
	ft.ignoreCtrlC = o.ignoreInt
	o.terms = append(o.terms, ft)
	o.byPID[ft.pid] = ft
	hook := o.onSpawn
	o.mu.Unlock()
	if hook != nil {
		hook(ft)
	}
	return ft, nil
}

func (o *fakeOS) kill(pid int) error {
	o.mu.Lock()
	o.killed = append(o.killed, pid)
	ft := o.byPID[pid]
	unkillable := o.unkillable
	o.mu.Unlock()
	if ft == nil {
		return errors.New("no such process")
	}
	if !unkillable {
		ft.exit(-1)
	}
	return nil
}

func (o *fakeOS) term(i int) *fakeTerm {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.terms[i]
}

func (o *fakeOS) spawned() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.terms)
}

func (o *fakeOS) killCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.killed)
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) filter(key int, channel string) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Key == key && e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, key int, channel string, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.filter(key, channel); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s events for key %d; have %+v", n, channel, key, r.all())
	return nil
}

func newTestSupervisor(t *testing.T, o *fakeOS, mutate ...func(*Options)) (*Supervisor, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts := Options{
		GracePeriod:   100 * time.Millisecond,
		ShutdownGrace: 100 * time.Millisecond,
		ReapTimeout:   50 * time.Millisecond,
		DrainTimeout:  50 * time.Millisecond,
		Spawner:       o.spawn,
		Killer:        o.kill,
		Sink:          rec,
	}
	for _, m := range mutate {
		m(&opts)
	}
	s := New(opts)
	t.Cleanup(s.StopAll)
	return s, rec
}
