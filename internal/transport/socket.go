package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single established socket. ReadMessage blocks until a frame
// arrives or the connection dies; any error from it means the socket is
// finished.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a Conn. A non-nil error is a construction failure the
// client recovers from via its retry path.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials with gorilla/websocket.
type WSDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	return &wsConn{conn: conn, writeTimeout: d.WriteTimeout}, nil
}

// wsConn wraps a gorilla connection with write serialization.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	closeMu sync.Mutex
	closed  bool
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.writeMu.Lock()
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	return c.conn.Close()
}
