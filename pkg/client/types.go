package client

import "time"

// Event channel names sent by the daemon.
const (
	ChannelData         = "webapp-data"
	ChannelExit         = "webapp-exit"
	ChannelPortDetected = "webapp-port-detected"
	ChannelInput        = "webapp-input"
	ChannelResize       = "webapp-resize"
)

// StartRequest starts a dev server. Command is optional; when empty the
// daemon resolves one from package.json.
type StartRequest struct {
	Key     int    `json:"key"`
	Cwd     string `json:"cwd"`
	Command string `json:"command,omitempty"`
}

// StartResult mirrors the daemon's webapp-start response.
type StartResult struct {
	Success bool   `json:"success"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Framework struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// DevServer describes one running dev server.
type DevServer struct {
	Key       int       `json:"key"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	Port      *int      `json:"port"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
}

// Stats is the resource usage of a dev server's process tree.
type Stats struct {
	PID        int       `json:"pid"`
	Processes  int       `json:"processes"`
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event is one frame from the events socket. Data is raw terminal output.
type Event struct {
	Channel string `json:"channel"`
	Key     int    `json:"key"`
	Data    []byte `json:"data,omitempty"`
	Code    *int   `json:"code,omitempty"`
	Port    int    `json:"port,omitempty"`
}

type keyRequest struct {
	Key int `json:"key"`
}

type cwdRequest struct {
	Cwd string `json:"cwd"`
}

type inputFrame struct {
	Channel string `json:"channel,omitempty"`
	Key     int    `json:"key"`
	Data    []byte `json:"data,omitempty"`
	Cols    uint16 `json:"cols,omitempty"`
	Rows    uint16 `json:"rows,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
