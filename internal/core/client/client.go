// Package client tracks live connections, their component subscriptions and
// the reverse index used to fan updates out to subscribers.
package client

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel is the outbound half of a duplex text connection. The registry
// only writes to it and never closes it.
type Channel interface {
	Send(frame []byte) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(frame []byte) error

func (f ChannelFunc) Send(frame []byte) error { return f(frame) }

// Client is one live connection.
type Client struct {
	id          uuid.UUID
	channel     Channel
	connectedAt time.Time
	seq         uint64

	// guarded by Registry.mu
	subscriptions map[string]struct{}

	out *outbox
}

func (c *Client) ID() uuid.UUID          { return c.id }
func (c *Client) Channel() Channel       { return c.channel }
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// outbox is a bounded FIFO of encoded frames drained by a single writer
// goroutine, so frames reach one client in the order they were enqueued.
type outbox struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newOutbox(size int) *outbox {
	if size < 1 {
		size = 1
	}
	return &outbox{
		frames: make(chan []byte, size),
		done:   make(chan struct{}),
	}
}

func (o *outbox) push(frame []byte) error {
	select {
	case <-o.done:
		return ErrClientClosed
	default:
	}
	select {
	case o.frames <- frame:
		return nil
	case <-o.done:
		return ErrClientClosed
	default:
		return ErrOutboxFull
	}
}

func (o *outbox) close() {
	o.once.Do(func() { close(o.done) })
}

// drain writes queued frames to ch until the outbox is closed.
func (o *outbox) drain(ch Channel, sent func(), failed func(error)) {
	for {
		select {
		case <-o.done:
			return
		case frame := <-o.frames:
			if err := ch.Send(frame); err != nil {
				failed(err)
				continue
			}
			sent()
		}
	}
}
