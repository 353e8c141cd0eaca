package transport

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// pongWait bounds how long a connection may stay silent before the
	// read side gives up on it.
	pongWait = 60 * time.Second
	// pingInterval must be shorter than pongWait.
	pingInterval = 54 * time.Second
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second
	// sendBufferSize is the per-connection outbound queue; a peer that lets
	// it fill is treated as gone.
	sendBufferSize = 256
)

// Limits carries the per-connection protections the transport enforces.
type Limits struct {
	MaxMessageSize int64
	RateBurst      int
	RateRefill     time.Duration
}

// Client is one live WebSocket connection addressed by its opaque handle.
// It pumps inbound frames into the hub and drains its send channel back to
// the peer.
type Client struct {
	handle string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	addr   string
	closed bool

	limits  Limits
	limiter *rate.Limiter
}

// NewClient wraps an upgraded WebSocket connection. The handle must be
// unique among live connections; the hub uses it as the routing address.
func NewClient(handle string, conn *websocket.Conn, hub *Hub, addr string, limits Limits) *Client {
	if conn != nil && limits.MaxMessageSize > 0 {
		conn.SetReadLimit(limits.MaxMessageSize)
	}
	return &Client{
		handle:  handle,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		hub:     hub,
		addr:    addr,
		limits:  limits,
		limiter: newRateLimiter(limits.RateBurst, limits.RateRefill),
	}
}

// Handle returns the opaque identifier the hub routes by.
func (c *Client) Handle() string {
	return c.handle
}

func (c *Client) readPump() {
	defer func() {
		// During shutdown the hub loop is gone; don't block on it.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump: %v", err)
		}
	}()

	c.setupReadDeadlines()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.Allow() {
			log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message", c.addr, c.limits.RateBurst, c.limits.RateRefill)
			continue
		}

		select {
		case c.hub.inbound <- inboundText{handle: c.handle, text: string(raw)}:
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// setupReadDeadlines configures read deadlines and the pong handler.
func (c *Client) setupReadDeadlines() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// logReadError reports why the read loop is exiting, quieter for the
// expected close paths.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.limits.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.addr, err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.addr, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.addr, err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeMessage(message, ok) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// writeMessage sends one outbound frame, or the close frame when the send
// channel has been closed by the hub. It reports whether the pump should
// keep running.
func (c *Client) writeMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		log.Printf("Error writing message to %s: %v", c.addr, err)
		return false
	}
	return true
}

// writePing keeps the connection alive and reports whether the pump should
// keep running.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Printf("Error writing ping message to %s: %v", c.addr, err)
		return false
	}
	return true
}
