package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/loykin/devsup/internal/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientFrame = 1 << 20
)

// Client frame channels accepted on the events socket.
const (
	ChannelInput  = "webapp-input"
	ChannelResize = "webapp-resize"
)

// clientFrame is a fire-and-forget message sent by the UI over /events.
type clientFrame struct {
	Channel string `json:"channel"`
	Key     int    `json:"key"`
	Data    []byte `json:"data,omitempty"`
	Cols    uint16 `json:"cols,omitempty"`
	Rows    uint16 `json:"rows,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 32 * 1024,
	// The token check replaces origin checks; the listener is local.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (r *Router) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	sub := r.hub.Subscribe()
	r.log.Debug("event subscriber connected", "remote", conn.RemoteAddr().String())
	go r.readFrames(conn, sub)
	r.writeEvents(conn, sub)
}

// writeEvents is the only writer on conn.
func (r *Router) writeEvents(conn *websocket.Conn, sub *hub.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		_ = conn.Close()
	}()
	for {
		select {
		case e, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				code, reason := websocket.CloseNormalClosure, ""
				if sub.Overflowed() {
					code, reason = websocket.CloseTryAgainLater, "subscriber too slow"
				}
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readFrames dispatches input and resize frames until the peer goes away.
func (r *Router) readFrames(conn *websocket.Conn, sub *hub.Subscription) {
	defer sub.Close()
	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.Debug("event subscriber read failed", "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		var f clientFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			continue
		}
		switch f.Channel {
		case ChannelInput:
			r.sup.Write(f.Key, f.Data)
		case ChannelResize:
			r.sup.Resize(f.Key, f.Cols, f.Rows)
		}
	}
}
