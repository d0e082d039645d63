package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds a single websocket send; a slower peer is
// treated as disconnected
const DefaultWriteTimeout = 10 * time.Second

// WSConn adapts a gorilla websocket connection to the hub's Conn interface.
// gorilla allows at most one concurrent writer, so writes are serialized.
type WSConn struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWSConn wraps a websocket connection. A non-positive timeout falls back
// to DefaultWriteTimeout.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) *WSConn {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WSConn{conn: conn, writeTimeout: writeTimeout}
}

// WriteText sends one text frame with a bounded deadline
func (c *WSConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection
func (c *WSConn) Close() error {
	return c.conn.Close()
}
