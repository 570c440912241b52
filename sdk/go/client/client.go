// Package client is a Go SDK for mist servers: it subscribes to components,
// invokes actions and streams the frames the server pushes back.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/protocol"
	"github.com/zeusync/mist/internal/transport"
	"github.com/zeusync/mist/internal/transport/quic"
	"github.com/zeusync/mist/internal/transport/websocket"
)

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

// Config holds configuration for the client
type Config struct {
	// ServerAddr is a ws:// URL for websocket or host:port for QUIC.
	ServerAddr string
	Transport  string
	// TLS is used for QUIC. Defaults to a config that skips verification.
	TLS *tls.Config

	ConnectTimeout    time.Duration
	MessageBufferSize int
	ReadLimit         int64

	Logger log.Log
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerAddr:        "ws://localhost:8080/mist/ws",
		Transport:         TransportWebSocket,
		ConnectTimeout:    10 * time.Second,
		MessageBufferSize: 256,
	}
}

// MessageHandler is called for every decoded frame of the kind it was
// registered for, on the read goroutine.
type MessageHandler func(msg protocol.Message)

// Client is one connection to a mist server.
type Client struct {
	conn transport.Conn

	handlers     map[protocol.Kind][]MessageHandler
	handlerMutex sync.RWMutex
	messages     chan protocol.Message

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool
	cancel    context.CancelFunc

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
}

func NewClient(config Config) *Client {
	if config.MessageBufferSize <= 0 {
		config.MessageBufferSize = DefaultClientConfig().MessageBufferSize
	}
	if config.Transport == "" {
		config.Transport = TransportWebSocket
	}
	return &Client{
		handlers: make(map[protocol.Kind][]MessageHandler),
		messages: make(chan protocol.Message, config.MessageBufferSize),
		config:   config,
		logger:   log.OrNop(config.Logger).With(log.String("component", "client")),
	}
}

// Connect dials the server and starts reading frames.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		return err
	}
	c.conn = conn

	readCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.workerGroup.Add(1)
	go c.readLoop(readCtx)

	c.logger.Info("connected", log.String("addr", c.config.ServerAddr), log.String("transport", c.config.Transport))
	return nil
}

func (c *Client) dial(ctx context.Context) (transport.Conn, error) {
	switch c.config.Transport {
	case TransportWebSocket:
		return websocket.Dial(ctx, c.config.ServerAddr, websocket.Options{ReadLimit: c.config.ReadLimit})
	case TransportQUIC:
		tlsConf := c.config.TLS
		if tlsConf == nil {
			tlsConf = quic.InsecureClientTLS()
		}
		return quic.Dial(ctx, c.config.ServerAddr, tlsConf)
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.config.Transport)
	}
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.workerGroup.Done()
	defer close(c.messages)

	for {
		frame, err := c.conn.Receive(ctx)
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) && atomic.LoadInt32(&c.closed) == 0 {
				c.logger.Warn("receive failed", log.Error(err))
			}
			atomic.StoreInt32(&c.connected, 0)
			return
		}
		msg, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Debug("dropping undecodable frame", log.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.Message) {
	c.handlerMutex.RLock()
	handlers := c.handlers[msg.Kind()]
	c.handlerMutex.RUnlock()
	for _, h := range handlers {
		h(msg)
	}

	select {
	case c.messages <- msg:
	default:
		c.logger.Warn("message buffer full, dropping frame", log.String("kind", string(msg.Kind())))
	}
}

// On registers a handler for one message kind.
func (c *Client) On(kind protocol.Kind, handler MessageHandler) {
	c.handlerMutex.Lock()
	c.handlers[kind] = append(c.handlers[kind], handler)
	c.handlerMutex.Unlock()
}

// Messages streams every decoded frame. It is closed when the connection
// ends.
func (c *Client) Messages() <-chan protocol.Message {
	return c.messages
}

// Subscribe asks for updates of component.
func (c *Client) Subscribe(ctx context.Context, component string) error {
	return c.send(ctx, protocol.NewSubscribe(component))
}

// Action invokes a component action on the entity id. The outcome arrives
// as an actionResult frame.
func (c *Client) Action(ctx context.Context, component string, id uuid.UUID, action string) error {
	return c.send(ctx, protocol.NewAction(component, id, action))
}

func (c *Client) send(ctx context.Context, msg protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.conn.Send(frame)
}

func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1 && atomic.LoadInt32(&c.closed) == 0
}

// Close ends the connection and waits for the read loop.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return ErrClientClosed
	}
	if c.conn == nil {
		close(c.messages)
		return nil
	}
	err := c.conn.Close()
	c.cancel()
	c.workerGroup.Wait()
	c.logger.Info("client closed")
	return err
}
