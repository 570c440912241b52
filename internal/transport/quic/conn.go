// Package quic carries mist frames over QUIC. Each connection uses a single
// bidirectional stream opened by the client; frames are newline-delimited.
package quic

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/mist/internal/transport"
)

var _ transport.Conn = (*Conn)(nil)

const (
	defaultReadLimit = 64 << 10
	idleTimeout      = 30 * time.Second
	keepAlive        = 15 * time.Second
	delimiter        = '\n'
)

// Config returns the QUIC settings shared by listener and dialer.
func Config() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  idleTimeout,
		KeepAlivePeriod: keepAlive,
	}
}

// Conn is one QUIC connection and its frame stream.
type Conn struct {
	conn    *quic.Conn
	stream  *quic.Stream
	scanner *bufio.Scanner
	writeMu sync.Mutex
	closed  atomic.Bool
}

func newConn(conn *quic.Conn, stream *quic.Stream, readLimit int) *Conn {
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 4096), readLimit)
	return &Conn{conn: conn, stream: stream, scanner: scanner}
}

// Dial connects to a mist QUIC endpoint and opens the frame stream. An empty
// frame is written so the server sees the stream immediately.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Conn, error) {
	qc, err := quic.DialAddr(ctx, addr, tlsConf, Config())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}
	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "open stream failed")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	c := newConn(qc, stream, 0)
	if err = c.Send(nil); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) Send(frame []byte) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	if bytes.IndexByte(frame, delimiter) >= 0 {
		return errors.New("frame contains a newline")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	buf := make([]byte, 0, len(frame)+1)
	buf = append(append(buf, frame...), delimiter)
	if _, err := c.stream.Write(buf); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

// Receive returns the next non-empty frame.
func (c *Conn) Receive(_ context.Context) ([]byte, error) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		return append([]byte(nil), line...), nil
	}
	if c.closed.Load() {
		return nil, transport.ErrClosed
	}
	if err := c.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read frame")
	}
	return nil, transport.ErrClosed
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "connection closed")
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Listener accepts QUIC connections.
type Listener struct {
	listener  *quic.Listener
	readLimit int
}

// Listen starts listening on addr.
func Listen(addr string, tlsConf *tls.Config, readLimit int) (*Listener, error) {
	ln, err := quic.ListenAddr(addr, tlsConf, Config())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return &Listener{listener: ln, readLimit: readLimit}, nil
}

// Accept waits for the next connection. The frame stream is accepted
// separately with Open so a slow client cannot hold up the accept loop.
func (l *Listener) Accept(ctx context.Context) (*quic.Conn, error) {
	qc, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept QUIC connection")
	}
	return qc, nil
}

// Open waits for the client's frame stream on an accepted connection.
func (l *Listener) Open(ctx context.Context, qc *quic.Conn) (*Conn, error) {
	stream, err := qc.AcceptStream(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "no stream")
		return nil, errors.Wrap(err, "failed to accept stream")
	}
	return newConn(qc, stream, l.readLimit), nil
}

func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

func (l *Listener) Close() error {
	return l.listener.Close()
}
