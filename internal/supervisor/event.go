package supervisor

import "sync"

// Event channel names delivered to the UI.
const (
	ChannelData         = "webapp-data"
	ChannelExit         = "webapp-exit"
	ChannelPortDetected = "webapp-port-detected"
)

// Event is one supervisor-to-UI notification. Data is set for webapp-data,
// Code for webapp-exit and Port for webapp-port-detected.
type Event struct {
	Channel string `json:"channel"`
	Key     int    `json:"key"`
	Data    []byte `json:"data,omitempty"`
	Code    *int   `json:"code,omitempty"`
	Port    int    `json:"port,omitempty"`
}

func dataEvent(key int, b []byte) Event {
	return Event{Channel: ChannelData, Key: key, Data: b}
}

func exitEvent(key, code int) Event {
	return Event{Channel: ChannelExit, Key: key, Code: &code}
}

func portEvent(key, port int) Event {
	return Event{Channel: ChannelPortDetected, Key: key, Port: port}
}

// EventSink receives supervisor events. Emit is called from per-child
// goroutines, in order for any single key, and must not block for long.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// MultiSink fans events out to several sinks in registration order.
type MultiSink struct {
	mu    sync.RWMutex
	sinks []EventSink
}

// Add registers another sink.
func (m *MultiSink) Add(s EventSink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	m.sinks = append(m.sinks, s)
	m.mu.Unlock()
}

func (m *MultiSink) Emit(e Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sinks {
		s.Emit(e)
	}
}

type discard struct{}

func (discard) Emit(Event) {}
