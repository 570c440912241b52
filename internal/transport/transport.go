// Package transport defines the duplex text connection the connection
// handler drives. Adapters live in the websocket and quic subpackages.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("connection closed")

// Conn is one persistent duplex connection carrying text frames.
type Conn interface {
	// Send writes one frame. It is safe for concurrent use.
	Send(frame []byte) error
	// Receive blocks until the next frame arrives or the connection ends.
	Receive(ctx context.Context) ([]byte, error)
	// Close tears the connection down. Multiple calls are safe.
	Close() error
	RemoteAddr() string
}
