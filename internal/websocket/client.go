// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/models"
)

const maxMessageSize = 4 * 1024 // viewers only send control frames

// clientIDCounter generates unique, monotonically increasing ids so
// broadcast iteration can be sorted into a consistent order.
var clientIDCounter atomic.Uint64

// Session identifies the authenticated viewer behind a client.
type Session struct {
	UserID int64
	Role   models.Role
}

// Client is the middleman between one websocket connection and the hub.
// All writes to the connection happen on the writePump goroutine; the
// rest of the system only ever touches the send channel.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	session Session
	send    chan []byte
}

// NewClient creates a client for an upgraded connection. The send
// buffer size and pump deadlines come from the hub's feed config.
func NewClient(hub *Hub, conn *websocket.Conn, session Session) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		session: session,
		send:    make(chan []byte, hub.sendBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Session returns the viewer session behind this client.
func (c *Client) Session() Session {
	return c.session
}

// Queue enqueues a pre-marshaled frame without blocking. Returns false
// when the client's buffer is full.
func (c *Client) Queue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump drains the connection solely to detect closure and keep the
// pong deadline fresh. Viewers have nothing to say to the server.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// writePump is the single writer for the connection: queued frames and
// periodic pings, with a write deadline on every operation.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
