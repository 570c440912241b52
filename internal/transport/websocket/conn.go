// Package websocket adapts gorilla/websocket connections to transport.Conn.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/mist/internal/transport"
)

var _ transport.Conn = (*Conn)(nil)

// Options tune a connection.
type Options struct {
	// ReadLimit caps inbound frame size in bytes. Zero means no limit.
	ReadLimit    int64
	WriteTimeout time.Duration
}

// Conn is a text-frame websocket connection.
type Conn struct {
	conn    *websocket.Conn
	opts    Options
	writeMu sync.Mutex
	closed  atomic.Bool
}

// New wraps an established websocket connection.
func New(conn *websocket.Conn, opts Options) *Conn {
	if opts.ReadLimit > 0 {
		conn.SetReadLimit(opts.ReadLimit)
	}
	return &Conn{conn: conn, opts: opts}
}

// Upgrader upgrades HTTP requests to websocket connections.
type Upgrader struct {
	upgrader websocket.Upgrader
	opts     Options
}

// NewUpgrader accepts any origin; mist components are public by name.
func NewUpgrader(opts Options) *Upgrader {
	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		opts: opts,
	}
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upgrade connection")
	}
	return New(conn, u.opts), nil
}

// Dial connects to a websocket endpoint.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}
	return New(conn, opts), nil
}

func (c *Conn) Send(frame []byte) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.opts.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Receive returns the next text or binary frame. Closing the connection
// unblocks a pending Receive.
func (c *Conn) Receive(_ context.Context) ([]byte, error) {
	for {
		if c.closed.Load() {
			return nil, transport.ErrClosed
		}
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, transport.ErrClosed
			}
			return nil, errors.Wrap(err, "failed to read message")
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
