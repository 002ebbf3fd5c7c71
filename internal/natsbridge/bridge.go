// Package natsbridge serves the dev server channels as NATS request/reply
// subjects and publishes supervisor events.
//
// Requests arrive on <prefix>.<channel> with the same JSON bodies as the HTTP
// routes. Events are published to <prefix>.<channel>.<key>.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loykin/devsup/internal/resolver"
	"github.com/loykin/devsup/internal/stats"
	"github.com/loykin/devsup/internal/supervisor"
)

// Request channels served over NATS.
const (
	ChannelStart           = "webapp-start"
	ChannelStop            = "webapp-stop"
	ChannelDetectFramework = "webapp-detect-framework"
	ChannelGetPort         = "webapp-get-port"
	ChannelInput           = "webapp-input"
	ChannelResize          = "webapp-resize"
	ChannelList            = "webapp-list"
	ChannelStats           = "webapp-stats"
)

var channels = []string{
	ChannelStart, ChannelStop, ChannelDetectFramework, ChannelGetPort,
	ChannelInput, ChannelResize, ChannelList, ChannelStats,
}

const statsTimeout = 5 * time.Second

// Supervisor is the subset of *supervisor.Supervisor the bridge drives.
type Supervisor interface {
	Start(key int, cwd, command string) supervisor.StartResult
	Stop(key int)
	Write(key int, data []byte)
	Resize(key int, cols, rows uint16)
	Port(key int) (int, bool)
	List() []supervisor.Info
	Stats(ctx context.Context, key int) (*stats.Snapshot, bool)
}

type Options struct {
	URL    string
	Prefix string
	Token  string
	Logger *slog.Logger
}

// Bridge implements supervisor.EventSink.
type Bridge struct {
	nc     *nats.Conn
	sup    Supervisor
	prefix string
	log    *slog.Logger
	subs   []*nats.Subscription
}

func newBridge(sup Supervisor, prefix string, log *slog.Logger) *Bridge {
	if prefix == "" {
		prefix = "devsup"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{sup: sup, prefix: prefix, log: log}
}

// Connect dials NATS and subscribes every request channel.
func Connect(opts Options, sup Supervisor) (*Bridge, error) {
	b := newBridge(sup, opts.Prefix, opts.Logger)
	url := opts.URL
	if url == "" {
		url = nats.DefaultURL
	}
	natsOpts := []nats.Option{
		nats.Name("devsup"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.log.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	}
	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	b.nc = nc

	for _, ch := range channels {
		sub, err := nc.Subscribe(b.Subject(ch), func(m *nats.Msg) {
			reply, ok := b.handle(ch, m.Data)
			if !ok || m.Reply == "" {
				return
			}
			if err := m.Respond(reply); err != nil {
				b.log.Debug("nats respond failed", "subject", m.Subject, "err", err)
			}
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("subscribe %s: %w", ch, err)
		}
		b.subs = append(b.subs, sub)
	}
	b.log.Info("nats bridge connected", "url", nc.ConnectedUrl(), "prefix", b.prefix)
	return b, nil
}

// Subject returns the request subject for channel.
func (b *Bridge) Subject(channel string) string {
	return b.prefix + "." + channel
}

// EventSubject returns the subject events for key are published on.
func (b *Bridge) EventSubject(channel string, key int) string {
	return b.prefix + "." + channel + "." + strconv.Itoa(key)
}

// Emit publishes e. Publish errors are logged and dropped.
func (b *Bridge) Emit(e supervisor.Event) {
	if b.nc == nil {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := b.nc.Publish(b.EventSubject(e.Channel, e.Key), payload); err != nil {
		b.log.Debug("nats publish failed", "channel", e.Channel, "key", e.Key, "err", err)
	}
}

// Close drains subscriptions and closes the connection.
func (b *Bridge) Close() error {
	if b.nc == nil {
		return nil
	}
	err := b.nc.Drain()
	if err != nil {
		b.nc.Close()
	}
	return err
}

type startReq struct {
	Key     *int   `json:"key"`
	Cwd     string `json:"cwd"`
	Command string `json:"command"`
}

type keyReq struct {
	Key *int `json:"key"`
}

type cwdReq struct {
	Cwd string `json:"cwd"`
}

type inputReq struct {
	Key  int    `json:"key"`
	Data []byte `json:"data"`
}

type resizeReq struct {
	Key  int    `json:"key"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

type errorResp struct {
	Error string `json:"error"`
}

type successResp struct {
	Success bool `json:"success"`
}

// handle runs one request and returns the reply body. ok is false for
// fire-and-forget channels, which never reply.
func (b *Bridge) handle(channel string, payload []byte) (reply []byte, ok bool) {
	switch channel {
	case ChannelStart:
		var req startReq
		if err := json.Unmarshal(payload, &req); err != nil {
			return encode(errorResp{Error: "invalid JSON: " + err.Error()}), true
		}
		if req.Key == nil {
			return encode(errorResp{Error: "key required"}), true
		}
		if !filepath.IsAbs(req.Cwd) {
			return encode(errorResp{Error: "invalid cwd: must be absolute path"}), true
		}
		return encode(b.sup.Start(*req.Key, filepath.Clean(req.Cwd), req.Command)), true
	case ChannelStop:
		key, errReply := decodeKey(payload)
		if errReply != nil {
			return errReply, true
		}
		b.sup.Stop(key)
		return encode(successResp{Success: true}), true
	case ChannelDetectFramework:
		var req cwdReq
		if err := json.Unmarshal(payload, &req); err != nil {
			return encode(errorResp{Error: "invalid JSON: " + err.Error()}), true
		}
		if !filepath.IsAbs(req.Cwd) {
			return encode(errorResp{Error: "invalid cwd: must be absolute path"}), true
		}
		return encode(resolver.DetectFramework(filepath.Clean(req.Cwd))), true
	case ChannelGetPort:
		key, errReply := decodeKey(payload)
		if errReply != nil {
			return errReply, true
		}
		if port, found := b.sup.Port(key); found {
			return encode(port), true
		}
		return encode(nil), true
	case ChannelInput:
		var req inputReq
		if json.Unmarshal(payload, &req) == nil {
			b.sup.Write(req.Key, req.Data)
		}
		return nil, false
	case ChannelResize:
		var req resizeReq
		if json.Unmarshal(payload, &req) == nil {
			b.sup.Resize(req.Key, req.Cols, req.Rows)
		}
		return nil, false
	case ChannelList:
		return encode(b.sup.List()), true
	case ChannelStats:
		key, errReply := decodeKey(payload)
		if errReply != nil {
			return errReply, true
		}
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()
		if snap, found := b.sup.Stats(ctx, key); found {
			return encode(snap), true
		}
		return encode(nil), true
	}
	return encode(errorResp{Error: "unknown channel " + channel}), true
}

func decodeKey(payload []byte) (int, []byte) {
	var req keyReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return 0, encode(errorResp{Error: "invalid JSON: " + err.Error()})
	}
	if req.Key == nil {
		return 0, encode(errorResp{Error: "key required"})
	}
	return *req.Key, nil
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"encode failed"}`)
	}
	return b
}
