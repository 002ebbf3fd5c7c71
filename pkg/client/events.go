package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// EventStream is a connected events websocket. Next must be called from a
// single goroutine; Input and Resize may be called concurrently with it.
type EventStream struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// Events dials the daemon's event socket.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	url := c.baseURL + "/events"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	header := http.Header{}
	c.authorize(header)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial events: HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial events: %w", err)
	}
	return &EventStream{conn: conn}, nil
}

// Next blocks for the next event. It returns an error once the daemon
// closes the stream, including when this subscriber fell too far behind.
func (s *EventStream) Next() (Event, error) {
	var e Event
	err := s.conn.ReadJSON(&e)
	return e, err
}

func (s *EventStream) Input(key int, data []byte) error {
	return s.send(inputFrame{Channel: ChannelInput, Key: key, Data: data})
}

func (s *EventStream) Resize(key int, cols, rows uint16) error {
	return s.send(inputFrame{Channel: ChannelResize, Key: key, Cols: cols, Rows: rows})
}

func (s *EventStream) send(f inputFrame) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteJSON(f)
}

func (s *EventStream) Close() error {
	s.wmu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.wmu.Unlock()
	return s.conn.Close()
}
