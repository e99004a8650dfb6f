package websocket

import (
	"context"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	readLimit      = 4096
)

// Client represents a single WebSocket connection.
type Client struct {
	hub       *Hub
	conn      *ws.Conn
	onMessage func(ctx context.Context, data []byte)

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient creates a Client tied to the given hub and connection. onMessage
// is called from the read loop for every text frame; it may be nil.
func NewClient(hub *Hub, conn *ws.Conn, onMessage func(ctx context.Context, data []byte)) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		onMessage: onMessage,
		send:      make(chan []byte, sendBufferSize),
	}
}

// Send queues data for the write pump. When the buffer is full the oldest
// queued frame is dropped; every agenda frame supersedes the ones before it.
// It reports false once the client has been closed.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	for {
		select {
		case c.send <- data:
			return true
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.conn.SetReadLimit(readLimit)
	go func() {
		c.writePump(ctx)
		cancel()
	}()
	c.readPump(ctx)
}

// readPump hands incoming text frames to onMessage. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ == ws.MessageText && c.onMessage != nil {
			c.onMessage(ctx, data)
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
