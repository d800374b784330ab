package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/venturelink/messenger/internal/logging"
	"github.com/venturelink/messenger/internal/server/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// sendBuffer bounds the per-connection outbound queue. A consumer that
	// falls further behind gets events dropped instead of stalling the relay.
	sendBuffer = 64
)

// client wraps one websocket connection. It is the registry.Conn handle the
// relay delivers into: Deliver enqueues onto the send channel and the write
// pump is the only goroutine writing to the socket.
type client struct {
	id     string
	conn   *websocket.Conn
	logger logging.Logger

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, logger logging.Logger) *client {
	return &client{
		id:     uuid.NewString(),
		conn:   conn,
		logger: logger,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Deliver enqueues the event without blocking. Returns false when the
// connection is gone or its buffer is full; the event is then dropped.
func (c *client) Deliver(event string, payload any) bool {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		c.logger.Error(context.Background(), "envelope encoding failed", "event", event, "error", err)
		return false
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close makes Deliver refuse new events and stops the write pump. Safe to
// call more than once.
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. Exits when the client is closed or a write
// fails; the read loop notices via the closed socket.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
